package models

import "time"

// ArchiveClassification selects the location-code series.
type ArchiveClassification string

const (
	ClassTramiteDocumentario ArchiveClassification = "TRAMITE_DOCUMENTARIO"
	ClassAdministrativo      ArchiveClassification = "ADMINISTRATIVO"
	ClassLegal               ArchiveClassification = "LEGAL"
	ClassContable            ArchiveClassification = "CONTABLE"
	ClassRecursosHumanos     ArchiveClassification = "RECURSOS_HUMANOS"
	ClassTecnico             ArchiveClassification = "TECNICO"
	ClassOtros               ArchiveClassification = "OTROS"
)

// LocationCode maps the classification to its two-letter shelf prefix.
func (c ArchiveClassification) LocationCode() (string, bool) {
	codes := map[ArchiveClassification]string{
		ClassTramiteDocumentario: "TD",
		ClassAdministrativo:      "AD",
		ClassLegal:               "LG",
		ClassContable:            "CT",
		ClassRecursosHumanos:     "RH",
		ClassTecnico:             "TC",
		ClassOtros:               "OT",
	}
	code, ok := codes[c]
	return code, ok
}

// RetentionPolicy names the configured retention horizon.
type RetentionPolicy string

const (
	RetentionPermanente   RetentionPolicy = "PERMANENTE"
	RetentionLargoPlazo   RetentionPolicy = "LARGO_PLAZO"
	RetentionMedianoPlazo RetentionPolicy = "MEDIANO_PLAZO"
	RetentionCortoPlazo   RetentionPolicy = "CORTO_PLAZO"
)

// ArchiveStatus tracks the archival lifecycle of an entry.
type ArchiveStatus string

const (
	ArchiveStatusArchived  ArchiveStatus = "ARCHIVED"
	ArchiveStatusDestroyed ArchiveStatus = "DESTROYED"
	ArchiveStatusMigrated  ArchiveStatus = "MIGRATED"
)

// ArchiveEntry is the archival record owned by exactly one document.
type ArchiveEntry struct {
	ID               string                `db:"id" json:"id"`
	DocumentID       string                `db:"document_id" json:"document_id"`
	Classification   ArchiveClassification `db:"classification" json:"classification"`
	Retention        RetentionPolicy       `db:"retention" json:"retention"`
	LocationCode     string                `db:"location_code" json:"location_code"`
	ArchivedAt       time.Time             `db:"archived_at" json:"archived_at"`
	ArchivedByUserID string                `db:"archived_by_user_id" json:"archived_by_user_id"`
	RetentionExpiry  time.Time             `db:"retention_expiry" json:"retention_expiry"`
	Status           ArchiveStatus         `db:"status" json:"status"`
	Observations     string                `db:"observations" json:"observations"`
}

// ArchiveOpResult reports the outcome of one item in a bulk archive
// operation; partial success is visible to the caller.
type ArchiveOpResult struct {
	EntryID string `json:"entry_id"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}
