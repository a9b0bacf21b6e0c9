package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "RUC", NormalizeHeader("  ruc (*) "))
	assert.Equal(t, "VIGENCIA HASTA", NormalizeHeader("Vigencia Hasta (dd/mm/aaaa)"))
	assert.Equal(t, "PLACA", NormalizeHeader("PLACA"))
}

func TestCoerceCell(t *testing.T) {
	assert.Equal(t, "20123456789", CoerceCell("20123456789.0"))
	assert.Equal(t, "", CoerceCell("NaN"))
	assert.Equal(t, "", CoerceCell("none"))
	assert.Equal(t, "25.50", CoerceCell(" 25.50 "))
}

func TestNormalizeRUC(t *testing.T) {
	got, err := NormalizeRUC("20123456789")
	require.NoError(t, err)
	assert.Equal(t, "20123456789", got)

	got, err = NormalizeRUC("20123456789.0")
	require.NoError(t, err)
	assert.Equal(t, "20123456789", got)

	_, err = NormalizeRUC("123")
	require.Error(t, err)
	_, err = NormalizeRUC("201234567890")
	require.Error(t, err)
}

func TestNormalizeResolution(t *testing.T) {
	cases := map[string]string{
		"921-2023":    "R-0921-2023",
		"R-921-2023":  "R-0921-2023",
		"R-0921-2023": "R-0921-2023",
		"15-2020":     "R-0015-2020",
		"12345-2024":  "R-12345-2024",
	}
	for raw, want := range cases {
		got, err := NormalizeResolution(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := NormalizeResolution("RESOLUCION 921")
	require.Error(t, err)
}

func TestNormalizeRouteCode(t *testing.T) {
	assert.Equal(t, "01", NormalizeRouteCode("1"))
	assert.Equal(t, "12", NormalizeRouteCode("12"))
	assert.Equal(t, "A3", NormalizeRouteCode("A3"))
	assert.Equal(t, "07", NormalizeRouteCode("7.0"))
}

func TestNormalizePartida(t *testing.T) {
	got, err := NormalizePartida("12345")
	require.NoError(t, err)
	assert.Equal(t, "00012345", got)

	got, err = NormalizePartida("123456789")
	require.NoError(t, err)
	assert.Equal(t, "123456789", got)

	_, err = NormalizePartida("ABC")
	require.Error(t, err)
}

func TestNormalizeDNI(t *testing.T) {
	got, err := NormalizeDNI("1234567")
	require.NoError(t, err)
	assert.Equal(t, "01234567", got)

	_, err = NormalizeDNI("123456789")
	require.Error(t, err)
}

func TestNormalizePhones(t *testing.T) {
	got, err := NormalizePhones("984123456 984654321")
	require.NoError(t, err)
	assert.Equal(t, "984123456,984654321", got)

	got, err = NormalizePhones("984123456, 984654321")
	require.NoError(t, err)
	assert.Equal(t, "984123456,984654321", got)

	got, err = NormalizePhones("")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = NormalizePhones("no-es-telefono")
	require.Error(t, err)
}

func TestIsCanceledRow(t *testing.T) {
	row := Row{Number: 4, Cells: map[string]string{
		"RESOLUCION": "R-0015-2020", "EMPRESA": "-", "FECHA": "-",
	}}
	assert.True(t, IsCanceledRow(row, []string{"EMPRESA", "FECHA"}))
	assert.False(t, IsCanceledRow(row, []string{"RESOLUCION", "EMPRESA"}))
	assert.False(t, IsCanceledRow(row, nil))
}
