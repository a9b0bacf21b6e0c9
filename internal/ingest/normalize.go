package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	rucPattern        = regexp.MustCompile(`^\d{11}$`)
	digitsPattern     = regexp.MustCompile(`^\d+$`)
	phonePattern      = regexp.MustCompile(`^\+?\d{6,12}$`)
	resolutionPattern = regexp.MustCompile(`^(?:R-)?0*(\d+)-(\d{4})$`)
	parenSuffix       = regexp.MustCompile(`\s*\(.*\)\s*$`)
	trailingDecimal   = regexp.MustCompile(`^(\d+)\.0+$`)
)

// NormalizeHeader strips surrounding whitespace and parenthetical suffixes
// so "RUC (*)" matches the internal column name "RUC".
func NormalizeHeader(raw string) string {
	h := strings.TrimSpace(raw)
	h = parenSuffix.ReplaceAllString(h, "")
	return strings.ToUpper(strings.TrimSpace(h))
}

// CoerceCell turns spreadsheet artifacts into clean strings: trailing-.0
// floats become integer strings, NaN/None literals become empty.
func CoerceCell(raw string) string {
	v := strings.TrimSpace(raw)
	switch strings.ToLower(v) {
	case "nan", "none", "null":
		return ""
	}
	if m := trailingDecimal.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return v
}

// NormalizeRUC validates the 11-digit fiscal identifier.
func NormalizeRUC(raw string) (string, error) {
	v := CoerceCell(raw)
	if !rucPattern.MatchString(v) {
		return "", fmt.Errorf("RUC must be exactly 11 digits, got %q", raw)
	}
	return v, nil
}

// NormalizeDNI left-pads the person identifier with zeros to 8 digits.
func NormalizeDNI(raw string) (string, error) {
	v := CoerceCell(raw)
	if v == "" || !digitsPattern.MatchString(v) || len(v) > 8 {
		return "", fmt.Errorf("DNI must be 1 to 8 digits, got %q", raw)
	}
	return fmt.Sprintf("%08s", v), nil
}

// NormalizePartida left-pads the registry identifier to 8 digits and keeps
// 9-digit inputs as-is.
func NormalizePartida(raw string) (string, error) {
	v := CoerceCell(raw)
	if v == "" || !digitsPattern.MatchString(v) || len(v) > 9 {
		return "", fmt.Errorf("partida must be 1 to 9 digits, got %q", raw)
	}
	if len(v) == 9 {
		return v, nil
	}
	return fmt.Sprintf("%08s", v), nil
}

// NormalizeResolution rewrites resolution identifiers to R-NNNN-YYYY with the
// number zero-padded to at least four digits. Idempotent.
func NormalizeResolution(raw string) (string, error) {
	v := strings.ToUpper(CoerceCell(raw))
	m := resolutionPattern.FindStringSubmatch(v)
	if m == nil {
		return "", fmt.Errorf("resolution must look like NNNN-YYYY, got %q", raw)
	}
	number, year := m[1], m[2]
	if len(number) < 4 {
		number = fmt.Sprintf("%04s", number)
	}
	return fmt.Sprintf("R-%s-%s", number, year), nil
}

// NormalizeRouteCode zero-pads plain integer route codes to two digits.
// Non-numeric codes pass through trimmed.
func NormalizeRouteCode(raw string) string {
	v := CoerceCell(raw)
	if digitsPattern.MatchString(v) && len(v) == 1 {
		return "0" + v
	}
	return v
}

// NormalizePhones converts whitespace-separated phone lists to
// comma-separated form. Each segment must individually match the phone
// pattern.
func NormalizePhones(raw string) (string, error) {
	v := CoerceCell(raw)
	if v == "" {
		return "", nil
	}
	v = strings.ReplaceAll(v, ",", " ")
	fields := strings.Fields(v)
	for _, f := range fields {
		if !phonePattern.MatchString(f) {
			return "", fmt.Errorf("invalid phone segment %q", f)
		}
	}
	return strings.Join(fields, ","), nil
}
