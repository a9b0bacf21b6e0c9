package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/drtc-peru/tramite-api/internal/models"
)

// PadronRepository persists the carrier registry entities fed by the bulk
// spreadsheet ingest: companies, resolutions, localities, routes, vehicles.
// Lookups by natural key return nil when absent so the ingest pipelines can
// branch between insert and update without sentinel errors.
type PadronRepository struct {
	db *sqlx.DB
}

// NewPadronRepository constructs the repository.
func NewPadronRepository(db *sqlx.DB) *PadronRepository {
	return &PadronRepository{db: db}
}

// --- companies ---

// FindCompanyByRUC returns the company with the given RUC, or nil.
func (r *PadronRepository) FindCompanyByRUC(ctx context.Context, ruc string) (*models.Company, error) {
	const query = `SELECT id, ruc, name, address, phones, email, active, notes, created_at, updated_at
	FROM companies WHERE ruc = $1`
	var c models.Company
	if err := r.db.GetContext(ctx, &c, query, ruc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find company by ruc: %w", err)
	}
	return &c, nil
}

// CreateCompany inserts a company row.
func (r *PadronRepository) CreateCompany(ctx context.Context, c *models.Company) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	const query = `INSERT INTO companies (id, ruc, name, address, phones, email, active, notes, created_at, updated_at)
	VALUES (:id, :ruc, :name, :address, :phones, :email, :active, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create company: %w", err)
	}
	return nil
}

// UpdateCompany rewrites a company's mutable fields.
func (r *PadronRepository) UpdateCompany(ctx context.Context, c *models.Company) error {
	c.UpdatedAt = time.Now().UTC()
	const query = `UPDATE companies SET name = :name, address = :address, phones = :phones,
	email = :email, active = :active, notes = :notes, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return requireAffected(res)
}

// --- resolutions ---

// FindResolutionByNumber returns the resolution with the normalized number,
// or nil.
func (r *PadronRepository) FindResolutionByNumber(ctx context.Context, number string) (*models.Resolution, error) {
	const query = `SELECT id, number, company_id, parent_id, issued_at, valid_from, valid_until,
	active, notes, created_at, updated_at FROM resolutions WHERE number = $1`
	var res models.Resolution
	if err := r.db.GetContext(ctx, &res, query, number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find resolution by number: %w", err)
	}
	return &res, nil
}

// CreateResolution inserts a resolution row.
func (r *PadronRepository) CreateResolution(ctx context.Context, res *models.Resolution) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	res.CreatedAt = now
	res.UpdatedAt = now
	const query = `INSERT INTO resolutions
	(id, number, company_id, parent_id, issued_at, valid_from, valid_until, active, notes, created_at, updated_at)
	VALUES (:id, :number, :company_id, :parent_id, :issued_at, :valid_from, :valid_until, :active,
	 :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("create resolution: %w", err)
	}
	return nil
}

// UpdateResolution rewrites a resolution's mutable fields.
func (r *PadronRepository) UpdateResolution(ctx context.Context, res *models.Resolution) error {
	res.UpdatedAt = time.Now().UTC()
	const query = `UPDATE resolutions SET company_id = :company_id, parent_id = :parent_id,
	issued_at = :issued_at, valid_from = :valid_from, valid_until = :valid_until, active = :active,
	notes = :notes, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, res)
	if err != nil {
		return fmt.Errorf("update resolution: %w", err)
	}
	return requireAffected(result)
}

// --- localities ---

// FindLocalityByName returns the locality with the given name, or nil. Name
// matching is case-insensitive since spreadsheets are inconsistent about
// casing.
func (r *PadronRepository) FindLocalityByName(ctx context.Context, name string) (*models.Locality, error) {
	const query = `SELECT id, name, ubigeo, kind, active, notes, created_at, updated_at
	FROM localities WHERE UPPER(name) = UPPER($1)`
	var l models.Locality
	if err := r.db.GetContext(ctx, &l, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find locality by name: %w", err)
	}
	return &l, nil
}

// CreateLocality inserts a locality row.
func (r *PadronRepository) CreateLocality(ctx context.Context, l *models.Locality) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	const query = `INSERT INTO localities (id, name, ubigeo, kind, active, notes, created_at, updated_at)
	VALUES (:id, :name, :ubigeo, :kind, :active, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, l); err != nil {
		return fmt.Errorf("create locality: %w", err)
	}
	return nil
}

// --- routes ---

// FindRouteByCode returns the route with the given code under a resolution,
// or nil. Route codes are only unique within their resolution.
func (r *PadronRepository) FindRouteByCode(ctx context.Context, resolutionID, code string) (*models.Route, error) {
	const query = `SELECT id, code, resolution_id, company_id, origin_id, destination_id, itinerary,
	frequency, tariff_soles, active, notes, created_at, updated_at
	FROM routes WHERE resolution_id = $1 AND code = $2`
	var route models.Route
	if err := r.db.GetContext(ctx, &route, query, resolutionID, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find route by code: %w", err)
	}
	return &route, nil
}

// CreateRoute inserts a route row.
func (r *PadronRepository) CreateRoute(ctx context.Context, route *models.Route) error {
	if route.ID == "" {
		route.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	route.CreatedAt = now
	route.UpdatedAt = now
	const query = `INSERT INTO routes
	(id, code, resolution_id, company_id, origin_id, destination_id, itinerary, frequency,
	 tariff_soles, active, notes, created_at, updated_at)
	VALUES (:id, :code, :resolution_id, :company_id, :origin_id, :destination_id, :itinerary,
	 :frequency, :tariff_soles, :active, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, route); err != nil {
		return fmt.Errorf("create route: %w", err)
	}
	return nil
}

// UpdateRoute rewrites a route's mutable fields.
func (r *PadronRepository) UpdateRoute(ctx context.Context, route *models.Route) error {
	route.UpdatedAt = time.Now().UTC()
	const query = `UPDATE routes SET company_id = :company_id, origin_id = :origin_id,
	destination_id = :destination_id, itinerary = :itinerary, frequency = :frequency,
	tariff_soles = :tariff_soles, active = :active, notes = :notes, updated_at = :updated_at
	WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, route)
	if err != nil {
		return fmt.Errorf("update route: %w", err)
	}
	return requireAffected(res)
}

// --- vehicles ---

// FindVehicleByPlate returns the vehicle with the given plate, or nil.
func (r *PadronRepository) FindVehicleByPlate(ctx context.Context, plate string) (*models.Vehicle, error) {
	const query = `SELECT id, plate, company_id, partida, brand, model_name, model_year, seat_count,
	active, notes, created_at, updated_at FROM vehicles WHERE plate = $1`
	var v models.Vehicle
	if err := r.db.GetContext(ctx, &v, query, plate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find vehicle by plate: %w", err)
	}
	return &v, nil
}

// CreateVehicle inserts a vehicle row.
func (r *PadronRepository) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	const query = `INSERT INTO vehicles
	(id, plate, company_id, partida, brand, model_name, model_year, seat_count, active, notes, created_at, updated_at)
	VALUES (:id, :plate, :company_id, :partida, :brand, :model_name, :model_year, :seat_count,
	 :active, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

// UpdateVehicle rewrites a vehicle's mutable fields.
func (r *PadronRepository) UpdateVehicle(ctx context.Context, v *models.Vehicle) error {
	v.UpdatedAt = time.Now().UTC()
	const query = `UPDATE vehicles SET company_id = :company_id, partida = :partida, brand = :brand,
	model_name = :model_name, model_year = :model_year, seat_count = :seat_count, active = :active,
	notes = :notes, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, v)
	if err != nil {
		return fmt.Errorf("update vehicle: %w", err)
	}
	return requireAffected(res)
}
