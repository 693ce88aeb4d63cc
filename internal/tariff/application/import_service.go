package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"energy-billing/internal/observability/logging"
	tariff "energy-billing/internal/tariff/domain"
)

// ImportService applies administrative tariff updates.
type ImportService struct {
	repo   tariff.ProfileRepository
	logger *zap.Logger
}

// NewImportService constructs an import service.
func NewImportService(repo tariff.ProfileRepository, logger *zap.Logger) (*ImportService, error) {
	if repo == nil {
		return nil, errors.New("tariff import: nil repository")
	}
	return &ImportService{repo: repo, logger: logging.OrNop(logger).Named("tariff.import")}, nil
}

// Import validates all profiles first and then saves them. Nothing is
// written when any profile is invalid or a country appears twice.
func (s *ImportService) Import(ctx context.Context, profiles []tariff.Profile) (int, error) {
	seen := make(map[string]struct{}, len(profiles))
	for i, profile := range profiles {
		if err := profile.ValidateDisjoint(); err != nil {
			return 0, fmt.Errorf("tariff import: row %d: %w", i+1, err)
		}
		if _, dup := seen[profile.CountryID]; dup {
			return 0, fmt.Errorf("tariff import: duplicate country %s", profile.CountryID)
		}
		seen[profile.CountryID] = struct{}{}
	}
	for i := range profiles {
		profile := profiles[i].Clone()
		if err := s.repo.Save(ctx, &profile); err != nil {
			return i, fmt.Errorf("tariff import: save %s: %w", profile.CountryID, err)
		}
		s.logger.Info("tariff profile saved", zap.String("country_id", profile.CountryID))
	}
	return len(profiles), nil
}
