package models

import "time"

// Company is a transport carrier (empresa) identified by its RUC.
type Company struct {
	ID        string    `db:"id" json:"id"`
	RUC       string    `db:"ruc" json:"ruc"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	Phones    string    `db:"phones" json:"phones"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Resolution is an administrative decision (R-NNNN-YYYY) authorizing routes.
type Resolution struct {
	ID         string     `db:"id" json:"id"`
	Number     string     `db:"number" json:"number"`
	CompanyID  *string    `db:"company_id" json:"company_id,omitempty"`
	ParentID   *string    `db:"parent_id" json:"parent_id,omitempty"`
	IssuedAt   *time.Time `db:"issued_at" json:"issued_at,omitempty"`
	ValidFrom  *time.Time `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	Active     bool       `db:"active" json:"active"`
	Notes      string     `db:"notes" json:"notes"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Locality is a geographic unit used as route origin or destination.
type Locality struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Ubigeo    string    `db:"ubigeo" json:"ubigeo"`
	Kind      string    `db:"kind" json:"kind"`
	Active    bool      `db:"active" json:"active"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Route is an authorized origin-destination pair owned by a carrier.
type Route struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	ResolutionID  string    `db:"resolution_id" json:"resolution_id"`
	CompanyID     string    `db:"company_id" json:"company_id"`
	OriginID      string    `db:"origin_id" json:"origin_id"`
	DestinationID string    `db:"destination_id" json:"destination_id"`
	Itinerary     string    `db:"itinerary" json:"itinerary"`
	Frequency     string    `db:"frequency" json:"frequency"`
	TariffSoles   float64   `db:"tariff_soles" json:"tariff_soles"`
	Active        bool      `db:"active" json:"active"`
	Notes         string    `db:"notes" json:"notes"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Vehicle is a registered unit owned by a carrier.
type Vehicle struct {
	ID          string    `db:"id" json:"id"`
	Plate       string    `db:"plate" json:"plate"`
	CompanyID   string    `db:"company_id" json:"company_id"`
	Partida     string    `db:"partida" json:"partida"`
	Brand       string    `db:"brand" json:"brand"`
	ModelName   string    `db:"model_name" json:"model_name"`
	ModelYear   int       `db:"model_year" json:"model_year"`
	SeatCount   int       `db:"seat_count" json:"seat_count"`
	Active      bool      `db:"active" json:"active"`
	Notes       string    `db:"notes" json:"notes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
