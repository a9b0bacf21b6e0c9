package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serialScannerStub struct {
	lastExpediente string
	lastDerivation string
	lastLocation   string
	err            error
}

func (s *serialScannerStub) LastExpediente(ctx context.Context, prefix string) (string, error) {
	return s.lastExpediente, s.err
}

func (s *serialScannerStub) LastDerivationNumber(ctx context.Context, prefix string) (string, error) {
	return s.lastDerivation, s.err
}

func (s *serialScannerStub) LastLocationCode(ctx context.Context, prefix string) (string, error) {
	return s.lastLocation, s.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNumberingServiceNextExpediente(t *testing.T) {
	svc := NewNumberingService(&serialScannerStub{lastExpediente: "EXP-2025-0042"}, nil)
	svc.now = fixedClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))

	got, err := svc.NextExpediente(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EXP-2025-0043", got)
}

func TestNumberingServiceEmptySeriesStartsAtOne(t *testing.T) {
	svc := NewNumberingService(&serialScannerStub{}, nil)
	svc.now = fixedClock(time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC))

	got, err := svc.NextExpediente(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EXP-2025-0001", got)
}

func TestNumberingServiceUnparseableTailRestarts(t *testing.T) {
	svc := NewNumberingService(&serialScannerStub{lastExpediente: "EXP-2025-XYZ"}, nil)
	svc.now = fixedClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	got, err := svc.NextExpediente(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EXP-2025-0001", got)
}

func TestNumberingServiceDerivationPrefixIsMonthly(t *testing.T) {
	svc := NewNumberingService(&serialScannerStub{lastDerivation: "DER-202507-0009"}, nil)
	svc.now = fixedClock(time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC))

	got, err := svc.NextDerivationNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "DER-202507-0010", got)
}

func TestNumberingServiceLocationCodeCarriesClassification(t *testing.T) {
	svc := NewNumberingService(&serialScannerStub{lastLocation: "EST-RE-2025-0100"}, nil)
	svc.now = fixedClock(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))

	got, err := svc.NextLocationCode(context.Background(), "RE")
	require.NoError(t, err)
	assert.Equal(t, "EST-RE-2025-0101", got)
}

func TestNumberingServicePropagatesScanError(t *testing.T) {
	svc := NewNumberingService(&serialScannerStub{err: fmt.Errorf("db down")}, nil)
	_, err := svc.NextExpediente(context.Background())
	require.Error(t, err)
}
