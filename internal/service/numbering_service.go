package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type serialScanner interface {
	LastExpediente(ctx context.Context, prefix string) (string, error)
	LastDerivationNumber(ctx context.Context, prefix string) (string, error)
	LastLocationCode(ctx context.Context, prefix string) (string, error)
}

// NumberingService allocates the sequential identifiers used across the
// platform. Each series restarts at 0001 when its prefix period rolls over;
// the database unique constraints arbitrate concurrent allocations and the
// callers retry on conflict.
type NumberingService struct {
	serials serialScanner
	logger  *zap.Logger
	now     func() time.Time
}

// NewNumberingService constructs the service.
func NewNumberingService(serials serialScanner, logger *zap.Logger) *NumberingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NumberingService{serials: serials, logger: logger, now: time.Now}
}

// NextExpediente returns the next EXP-YYYY-NNNN for the current year.
func (s *NumberingService) NextExpediente(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("EXP-%d-", s.now().Year())
	last, err := s.serials.LastExpediente(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("scan expediente series: %w", err)
	}
	return prefix + s.nextSuffix(last, prefix), nil
}

// NextDerivationNumber returns the next DER-YYYYMM-NNNN for the current
// month.
func (s *NumberingService) NextDerivationNumber(ctx context.Context) (string, error) {
	now := s.now()
	prefix := fmt.Sprintf("DER-%d%02d-", now.Year(), int(now.Month()))
	last, err := s.serials.LastDerivationNumber(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("scan derivation series: %w", err)
	}
	return prefix + s.nextSuffix(last, prefix), nil
}

// NextLocationCode returns the next EST-CC-YYYY-NNNN for the given
// classification code and the current year.
func (s *NumberingService) NextLocationCode(ctx context.Context, classCode string) (string, error) {
	prefix := fmt.Sprintf("EST-%s-%d-", classCode, s.now().Year())
	last, err := s.serials.LastLocationCode(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("scan location series: %w", err)
	}
	return prefix + s.nextSuffix(last, prefix), nil
}

// nextSuffix parses the numeric tail of the highest existing identifier and
// increments it. An unparseable tail restarts the series at 1 with a warning
// rather than blocking intake.
func (s *NumberingService) nextSuffix(last, prefix string) string {
	next := 1
	if last != "" {
		tail := strings.TrimPrefix(last, prefix)
		n, err := strconv.Atoi(tail)
		if err != nil {
			s.logger.Warn("unparseable serial tail, restarting series",
				zap.String("last", last), zap.String("prefix", prefix))
		} else {
			next = n + 1
		}
	}
	return fmt.Sprintf("%04d", next)
}
