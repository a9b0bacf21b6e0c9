package service

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drtc-peru/tramite-api/internal/ingest"
	"github.com/drtc-peru/tramite-api/internal/models"
	appErrors "github.com/drtc-peru/tramite-api/pkg/errors"
)

type padronStore interface {
	FindCompanyByRUC(ctx context.Context, ruc string) (*models.Company, error)
	CreateCompany(ctx context.Context, c *models.Company) error
	UpdateCompany(ctx context.Context, c *models.Company) error
	FindResolutionByNumber(ctx context.Context, number string) (*models.Resolution, error)
	CreateResolution(ctx context.Context, res *models.Resolution) error
	UpdateResolution(ctx context.Context, res *models.Resolution) error
	FindLocalityByName(ctx context.Context, name string) (*models.Locality, error)
	CreateLocality(ctx context.Context, l *models.Locality) error
	FindRouteByCode(ctx context.Context, resolutionID, code string) (*models.Route, error)
	CreateRoute(ctx context.Context, route *models.Route) error
	UpdateRoute(ctx context.Context, route *models.Route) error
	FindVehicleByPlate(ctx context.Context, plate string) (*models.Vehicle, error)
	CreateVehicle(ctx context.Context, v *models.Vehicle) error
	UpdateVehicle(ctx context.Context, v *models.Vehicle) error
}

var platePattern = regexp.MustCompile(`^[A-Z0-9]{2,3}-[0-9]{3,4}$`)

// IngestService runs the bulk spreadsheet pipelines that feed the carrier
// registry. Every pipeline validates row by row and persists what passes;
// failing rows land in the report instead of aborting the batch.
type IngestService struct {
	padron padronStore
	logger *zap.Logger
}

// NewIngestService constructs the service.
func NewIngestService(padron padronStore, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{padron: padron, logger: logger}
}

// ImportResolutions ingests the resolution registry sheet. Unknown RUCs
// auto-create an inactive company so the resolution is never orphaned.
func (s *IngestService) ImportResolutions(ctx context.Context, r io.Reader) (*ingest.Report, error) {
	rows, err := ingest.ReadWorkbook(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read workbook")
	}

	rules := []ingest.ColumnRule{
		{Column: "RESOLUCION", Required: true, Normalize: ingest.NormalizeResolution},
		{Column: "RUC", Required: true, Normalize: ingest.NormalizeRUC},
		{Column: "EMPRESA", Required: true, MinLen: 3, MaxLen: 200},
		{Column: "FECHA", Normalize: normalizeDate},
		{Column: "VIGENCIA HASTA", Normalize: normalizeDate},
	}

	report := ingest.NewReport()
	seen := map[string]int{}
	for _, row := range rows {
		res := applyRowRules(ctx, row, rules, []string{"EMPRESA", "FECHA"})
		res.Key = res.Values["RESOLUCION"]
		if first, dup := seen[res.Key]; dup && res.Key != "" {
			res.AddError("RESOLUCION: %q duplicates row %d", res.Key, first)
		} else if res.Key != "" {
			seen[res.Key] = row.Number
		}
		if !res.Valid() {
			report.Absorb(res)
			continue
		}
		created, err := s.persistResolution(ctx, res)
		report.Absorb(res)
		if err != nil {
			s.logger.Warn("resolution row rejected at persistence", zap.Error(err), zap.Int("row", res.RowNumber))
			report.Fail(res, appErrors.FromError(err).Message)
		} else if created {
			report.Created = append(report.Created, res.Key)
		} else {
			report.Updated = append(report.Updated, res.Key)
		}
	}
	return report, nil
}

// ImportRoutes ingests authorized routes. The referenced resolution and
// carrier must already exist; unknown localities are created inactive with a
// provenance note.
func (s *IngestService) ImportRoutes(ctx context.Context, r io.Reader) (*ingest.Report, error) {
	rows, err := ingest.ReadWorkbook(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read workbook")
	}

	zero := 0.0
	rules := []ingest.ColumnRule{
		{Column: "RESOLUCION", Required: true, Normalize: ingest.NormalizeResolution, Exists: s.resolutionExists},
		{Column: "RUC", Required: true, Normalize: ingest.NormalizeRUC, Exists: s.companyExists},
		{Column: "CODIGO", Required: true, Normalize: routeCodeNormalizer},
		{Column: "ORIGEN", Required: true, MinLen: 2, MaxLen: 120},
		{Column: "DESTINO", Required: true, MinLen: 2, MaxLen: 120},
		{Column: "TARIFA", Min: &zero},
	}

	report := ingest.NewReport()
	seen := map[string]int{}
	for _, row := range rows {
		res := applyRowRules(ctx, row, rules, []string{"ITINERARIO", "FRECUENCIA"})
		res.Key = res.Values["RESOLUCION"] + "/" + res.Values["CODIGO"]
		if first, dup := seen[res.Key]; dup {
			res.AddError("CODIGO: route %q duplicates row %d", res.Key, first)
		} else {
			seen[res.Key] = row.Number
		}
		if !res.Valid() {
			report.Absorb(res)
			continue
		}
		created, err := s.persistRoute(ctx, res)
		report.Absorb(res)
		if err != nil {
			s.logger.Warn("route row rejected at persistence", zap.Error(err), zap.Int("row", res.RowNumber))
			report.Fail(res, appErrors.FromError(err).Message)
		} else if created {
			report.Created = append(report.Created, res.Key)
		} else {
			report.Updated = append(report.Updated, res.Key)
		}
	}
	return report, nil
}

// ImportVehicles ingests the vehicle fleet sheet. Unknown carriers are
// auto-created inactive.
func (s *IngestService) ImportVehicles(ctx context.Context, r io.Reader) (*ingest.Report, error) {
	rows, err := ingest.ReadWorkbook(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read workbook")
	}

	minYear, maxYear := 1950.0, float64(time.Now().Year()+1)
	one := 1.0
	rules := []ingest.ColumnRule{
		{Column: "PLACA", Required: true, Normalize: normalizePlate, Pattern: platePattern},
		{Column: "RUC", Required: true, Normalize: ingest.NormalizeRUC},
		{Column: "PARTIDA", Normalize: ingest.NormalizePartida},
		{Column: "ANIO", Min: &minYear, Max: &maxYear},
		{Column: "ASIENTOS", Min: &one},
	}

	report := ingest.NewReport()
	seen := map[string]int{}
	for _, row := range rows {
		res := applyRowRules(ctx, row, rules, []string{"MARCA", "MODELO"})
		res.Key = res.Values["PLACA"]
		if first, dup := seen[res.Key]; dup && res.Key != "" {
			res.AddError("PLACA: %q duplicates row %d", res.Key, first)
		} else if res.Key != "" {
			seen[res.Key] = row.Number
		}
		if !res.Valid() {
			report.Absorb(res)
			continue
		}
		created, err := s.persistVehicle(ctx, res)
		report.Absorb(res)
		if err != nil {
			s.logger.Warn("vehicle row rejected at persistence", zap.Error(err), zap.Int("row", res.RowNumber))
			report.Fail(res, appErrors.FromError(err).Message)
		} else if created {
			report.Created = append(report.Created, res.Key)
		} else {
			report.Updated = append(report.Updated, res.Key)
		}
	}
	return report, nil
}

// ImportCompanies ingests the carrier registry sheet.
func (s *IngestService) ImportCompanies(ctx context.Context, r io.Reader) (*ingest.Report, error) {
	rows, err := ingest.ReadWorkbook(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read workbook")
	}

	rules := []ingest.ColumnRule{
		{Column: "RUC", Required: true, Normalize: ingest.NormalizeRUC},
		{Column: "RAZON SOCIAL", Required: true, MinLen: 3, MaxLen: 200},
		{Column: "DIRECCION", MaxLen: 250},
		{Column: "TELEFONO", Normalize: ingest.NormalizePhones},
	}

	report := ingest.NewReport()
	seen := map[string]int{}
	for _, row := range rows {
		res := applyRowRules(ctx, row, rules, []string{"RAZON SOCIAL", "DIRECCION"})
		res.Key = res.Values["RUC"]
		if first, dup := seen[res.Key]; dup && res.Key != "" {
			res.AddError("RUC: %q duplicates row %d", res.Key, first)
		} else if res.Key != "" {
			seen[res.Key] = row.Number
		}
		if !res.Valid() {
			report.Absorb(res)
			continue
		}
		created, err := s.persistCompany(ctx, res)
		report.Absorb(res)
		if err != nil {
			s.logger.Warn("company row rejected at persistence", zap.Error(err), zap.Int("row", res.RowNumber))
			report.Fail(res, appErrors.FromError(err).Message)
		} else if created {
			report.Created = append(report.Created, res.Key)
		} else {
			report.Updated = append(report.Updated, res.Key)
		}
	}
	return report, nil
}

// Template renders the blank upload workbook for one registry entity.
func (s *IngestService) Template(entity string) ([]byte, error) {
	tpl, ok := ingestTemplates[strings.ToLower(entity)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown template %q", entity))
	}
	data, err := tpl.Render()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusiness.Code, appErrors.ErrBusiness.Status, "failed to render template")
	}
	return data, nil
}

func (s *IngestService) persistResolution(ctx context.Context, res *ingest.RowResult) (bool, error) {
	company, err := s.ensureCompany(ctx, res.Values["RUC"], res.Values["EMPRESA"], res)
	if err != nil {
		return false, err
	}
	issued := parseDatePtr(res.Values["FECHA"])
	until := parseDatePtr(res.Values["VIGENCIA HASTA"])

	existing, err := s.padron.FindResolutionByNumber(ctx, res.Values["RESOLUCION"])
	if err != nil {
		return false, err
	}
	if existing != nil {
		if res.Canceled {
			existing.Active = false
			existing.Notes = cancelNote(res.RowNumber)
			return false, s.padron.UpdateResolution(ctx, existing)
		}
		existing.CompanyID = &company.ID
		existing.IssuedAt = issued
		existing.ValidUntil = until
		existing.Active = true
		return false, s.padron.UpdateResolution(ctx, existing)
	}
	created := &models.Resolution{
		Number:     res.Values["RESOLUCION"],
		CompanyID:  &company.ID,
		IssuedAt:   issued,
		ValidUntil: until,
		Active:     !res.Canceled,
	}
	if res.Canceled {
		created.Notes = cancelNote(res.RowNumber)
	}
	return true, s.padron.CreateResolution(ctx, created)
}

func (s *IngestService) persistRoute(ctx context.Context, res *ingest.RowResult) (bool, error) {
	resolution, err := s.padron.FindResolutionByNumber(ctx, res.Values["RESOLUCION"])
	if err != nil {
		return false, err
	}
	if resolution == nil {
		return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("resolution %s not found", res.Values["RESOLUCION"]))
	}
	company, err := s.padron.FindCompanyByRUC(ctx, res.Values["RUC"])
	if err != nil {
		return false, err
	}
	if company == nil {
		return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("company %s not found", res.Values["RUC"]))
	}
	origin, err := s.ensureLocality(ctx, res.Values["ORIGEN"], res)
	if err != nil {
		return false, err
	}
	destination, err := s.ensureLocality(ctx, res.Values["DESTINO"], res)
	if err != nil {
		return false, err
	}
	tariff, _ := strconv.ParseFloat(res.Values["TARIFA"], 64)

	existing, err := s.padron.FindRouteByCode(ctx, resolution.ID, res.Values["CODIGO"])
	if err != nil {
		return false, err
	}
	if existing != nil {
		if res.Canceled {
			existing.Active = false
			existing.Notes = cancelNote(res.RowNumber)
			return false, s.padron.UpdateRoute(ctx, existing)
		}
		existing.CompanyID = company.ID
		existing.OriginID = origin.ID
		existing.DestinationID = destination.ID
		existing.Itinerary = res.Values["ITINERARIO"]
		existing.Frequency = res.Values["FRECUENCIA"]
		existing.TariffSoles = tariff
		existing.Active = true
		return false, s.padron.UpdateRoute(ctx, existing)
	}
	route := &models.Route{
		Code:          res.Values["CODIGO"],
		ResolutionID:  resolution.ID,
		CompanyID:     company.ID,
		OriginID:      origin.ID,
		DestinationID: destination.ID,
		Itinerary:     res.Values["ITINERARIO"],
		Frequency:     res.Values["FRECUENCIA"],
		TariffSoles:   tariff,
		Active:        !res.Canceled,
	}
	if res.Canceled {
		route.Notes = cancelNote(res.RowNumber)
	}
	return true, s.padron.CreateRoute(ctx, route)
}

func (s *IngestService) persistVehicle(ctx context.Context, res *ingest.RowResult) (bool, error) {
	company, err := s.ensureCompany(ctx, res.Values["RUC"], "", res)
	if err != nil {
		return false, err
	}
	year, _ := strconv.Atoi(res.Values["ANIO"])
	seats, _ := strconv.Atoi(res.Values["ASIENTOS"])

	existing, err := s.padron.FindVehicleByPlate(ctx, res.Values["PLACA"])
	if err != nil {
		return false, err
	}
	if existing != nil {
		if res.Canceled {
			existing.Active = false
			existing.Notes = cancelNote(res.RowNumber)
			return false, s.padron.UpdateVehicle(ctx, existing)
		}
		existing.CompanyID = company.ID
		existing.Partida = res.Values["PARTIDA"]
		existing.Brand = res.Values["MARCA"]
		existing.ModelName = res.Values["MODELO"]
		existing.ModelYear = year
		existing.SeatCount = seats
		existing.Active = true
		return false, s.padron.UpdateVehicle(ctx, existing)
	}
	vehicle := &models.Vehicle{
		Plate:     res.Values["PLACA"],
		CompanyID: company.ID,
		Partida:   res.Values["PARTIDA"],
		Brand:     res.Values["MARCA"],
		ModelName: res.Values["MODELO"],
		ModelYear: year,
		SeatCount: seats,
		Active:    !res.Canceled,
	}
	if res.Canceled {
		vehicle.Notes = cancelNote(res.RowNumber)
	}
	return true, s.padron.CreateVehicle(ctx, vehicle)
}

func (s *IngestService) persistCompany(ctx context.Context, res *ingest.RowResult) (bool, error) {
	existing, err := s.padron.FindCompanyByRUC(ctx, res.Values["RUC"])
	if err != nil {
		return false, err
	}
	if existing != nil {
		if res.Canceled {
			existing.Active = false
			existing.Notes = cancelNote(res.RowNumber)
			return false, s.padron.UpdateCompany(ctx, existing)
		}
		existing.Name = res.Values["RAZON SOCIAL"]
		existing.Address = res.Values["DIRECCION"]
		existing.Phones = res.Values["TELEFONO"]
		existing.Email = res.Values["EMAIL"]
		existing.Active = true
		return false, s.padron.UpdateCompany(ctx, existing)
	}
	name := res.Values["RAZON SOCIAL"]
	if name == "" {
		name = "EMPRESA " + res.Values["RUC"]
	}
	company := &models.Company{
		RUC:     res.Values["RUC"],
		Name:    name,
		Address: res.Values["DIRECCION"],
		Phones:  res.Values["TELEFONO"],
		Email:   res.Values["EMAIL"],
		Active:  !res.Canceled,
	}
	if res.Canceled {
		company.Notes = cancelNote(res.RowNumber)
	}
	return true, s.padron.CreateCompany(ctx, company)
}

// ensureCompany returns the carrier with the given RUC, creating an inactive
// placeholder when absent so referencing rows still land.
func (s *IngestService) ensureCompany(ctx context.Context, ruc, name string, res *ingest.RowResult) (*models.Company, error) {
	company, err := s.padron.FindCompanyByRUC(ctx, ruc)
	if err != nil {
		return nil, err
	}
	if company != nil {
		return company, nil
	}
	if name == "" {
		name = "EMPRESA " + ruc
	}
	company = &models.Company{
		RUC:    ruc,
		Name:   name,
		Active: false,
		Notes:  fmt.Sprintf("creada automáticamente por importación (fila %d)", res.RowNumber),
	}
	if err := s.padron.CreateCompany(ctx, company); err != nil {
		return nil, err
	}
	res.AddWarning("RUC: empresa %s creada automáticamente como inactiva", ruc)
	return company, nil
}

// ensureLocality resolves a locality by name, creating an inactive
// placeholder with a provenance note when absent.
func (s *IngestService) ensureLocality(ctx context.Context, name string, res *ingest.RowResult) (*models.Locality, error) {
	locality, err := s.padron.FindLocalityByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if locality != nil {
		return locality, nil
	}
	locality = &models.Locality{
		Name:   strings.ToUpper(strings.TrimSpace(name)),
		Active: false,
		Notes:  fmt.Sprintf("creada automáticamente por importación (fila %d)", res.RowNumber),
	}
	if err := s.padron.CreateLocality(ctx, locality); err != nil {
		return nil, err
	}
	res.AddWarning("localidad %q creada automáticamente como inactiva", name)
	return locality, nil
}

func (s *IngestService) resolutionExists(ctx context.Context, number string) (bool, error) {
	res, err := s.padron.FindResolutionByNumber(ctx, number)
	if err != nil {
		return false, err
	}
	return res != nil, nil
}

func (s *IngestService) companyExists(ctx context.Context, ruc string) (bool, error) {
	c, err := s.padron.FindCompanyByRUC(ctx, ruc)
	if err != nil {
		return false, err
	}
	return c != nil, nil
}

// applyRowRules validates one row. Rows whose marker columns all hold "-"
// are the registry's convention for canceled entries: the markers are
// exempt from validation and blanked so the row persists inactive instead
// of failing length or date checks on the dash.
func applyRowRules(ctx context.Context, row ingest.Row, rules []ingest.ColumnRule, markers []string) *ingest.RowResult {
	canceled := ingest.IsCanceledRow(row, markers)
	rowRules := rules
	if canceled {
		rowRules = make([]ingest.ColumnRule, 0, len(rules))
		for _, rule := range rules {
			if !containsString(markers, rule.Column) {
				rowRules = append(rowRules, rule)
			}
		}
	}
	res := ingest.ApplyRules(ctx, row, rowRules)
	res.Canceled = canceled
	if canceled {
		for _, col := range markers {
			if res.Values[col] == "-" {
				res.Values[col] = ""
			}
		}
	}
	return res
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func routeCodeNormalizer(raw string) (string, error) {
	return ingest.NormalizeRouteCode(raw), nil
}

func normalizePlate(raw string) (string, error) {
	plate := strings.ToUpper(strings.TrimSpace(raw))
	plate = strings.ReplaceAll(plate, " ", "")
	return plate, nil
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006"}

func normalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("%q is not a recognizable date", raw)
}

func parseDatePtr(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}

func cancelNote(row int) string {
	return fmt.Sprintf("anulada en padrón (fila %d)", row)
}

var ingestTemplates = map[string]ingest.Template{
	"resoluciones": {
		Title: "Padrón de Resoluciones",
		Instructions: []string{
			"Complete una resolución por fila en la hoja DATOS.",
			"El número se normaliza al formato R-NNNN-AAAA.",
			"Las filas con datos '-' se registran como anuladas.",
		},
		Fields: []ingest.TemplateField{
			{Column: "RESOLUCION", Required: true, Example: "R-0921-2023", Description: "También acepta 921-2023"},
			{Column: "RUC", Required: true, Example: "20123456789", Description: "11 dígitos"},
			{Column: "EMPRESA", Required: true, Example: "TRANSPORTES ANDINOS S.A.C."},
			{Column: "FECHA", Example: "2023-05-12", Description: "AAAA-MM-DD o DD/MM/AAAA"},
			{Column: "VIGENCIA HASTA", Example: "2033-05-12"},
		},
	},
	"rutas": {
		Title: "Padrón de Rutas",
		Instructions: []string{
			"La resolución y la empresa deben existir previamente.",
			"Las localidades desconocidas se crean inactivas.",
		},
		Fields: []ingest.TemplateField{
			{Column: "RESOLUCION", Required: true, Example: "R-0921-2023"},
			{Column: "RUC", Required: true, Example: "20123456789"},
			{Column: "CODIGO", Required: true, Example: "01", Description: "Se rellena a dos dígitos"},
			{Column: "ORIGEN", Required: true, Example: "CUSCO"},
			{Column: "DESTINO", Required: true, Example: "QUILLABAMBA"},
			{Column: "ITINERARIO", Example: "CUSCO - OLLANTAYTAMBO - QUILLABAMBA"},
			{Column: "FRECUENCIA", Example: "DIARIA"},
			{Column: "TARIFA", Example: "25.50", Description: "Soles"},
		},
	},
	"vehiculos": {
		Title: "Padrón Vehicular",
		Instructions: []string{
			"Una unidad por fila, identificada por su placa.",
			"Las empresas desconocidas se crean inactivas.",
		},
		Fields: []ingest.TemplateField{
			{Column: "PLACA", Required: true, Example: "ABC-123"},
			{Column: "RUC", Required: true, Example: "20123456789"},
			{Column: "PARTIDA", Example: "00012345", Description: "Se rellena a ocho dígitos"},
			{Column: "MARCA", Example: "MERCEDES BENZ"},
			{Column: "MODELO", Example: "O500"},
			{Column: "ANIO", Example: "2018"},
			{Column: "ASIENTOS", Example: "44"},
		},
	},
	"empresas": {
		Title: "Padrón de Empresas",
		Instructions: []string{
			"Una empresa por fila, identificada por su RUC.",
			"Los teléfonos múltiples se separan con comas.",
		},
		Fields: []ingest.TemplateField{
			{Column: "RUC", Required: true, Example: "20123456789"},
			{Column: "RAZON SOCIAL", Required: true, Example: "TRANSPORTES ANDINOS S.A.C."},
			{Column: "DIRECCION", Example: "AV. DE LA CULTURA 1234, CUSCO"},
			{Column: "TELEFONO", Example: "984123456, 984654321"},
			{Column: "EMAIL", Example: "contacto@andinos.pe"},
		},
	},
}
