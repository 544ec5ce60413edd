package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"story-server/internal/domain"
	"story-server/internal/repository"
	"story-server/internal/storage"
)

// MaintenanceService reconciles the content store against the catalog.
type MaintenanceService struct {
	catalog repository.StoryCatalog
	users   repository.UserRepository
	store   *storage.Store
	logger  zerolog.Logger
}

// NewMaintenanceService creates the reconciliation sweeper.
func NewMaintenanceService(catalog repository.StoryCatalog, users repository.UserRepository, store *storage.Store, logger zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		catalog: catalog,
		users:   users,
		store:   store,
		logger:  logger.With().Str("component", "maintenance").Logger(),
	}
}

// ReconcileReport summarizes one sweep.
type ReconcileReport struct {
	OrphanStoryDirs []string `json:"orphan_story_dirs"`
	OrphanUserAreas []string `json:"orphan_user_areas"`
}

// Reconcile walks the content store and removes directories the catalog no
// longer knows about: story dirs left by structuring failures or deleted
// rows, and whole user areas whose user row is gone. The catalog is the
// authority; the sweep never touches directories with a live row.
func (m *MaintenanceService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	usernames, err := m.store.ListUsers()
	if err != nil {
		return report, fmt.Errorf("failed to list user areas: %w", err)
	}

	for _, username := range usernames {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		_, err := m.users.GetByUsername(ctx, username)
		if errors.Is(err, domain.ErrUserNotFound) {
			// Пользователь удален — вся его область подлежит удалению
			if err := m.store.RemoveTree(username); err != nil {
				m.logger.Error().Err(err).Str("username", username).Msg("failed to remove orphan user area")
				continue
			}
			report.OrphanUserAreas = append(report.OrphanUserAreas, username)
			orphansReclaimedTotal.Inc()
			m.logger.Info().Str("username", username).Msg("removed orphan user area")
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to look up user %q: %w", username, err)
		}

		dirs, err := m.store.ListStoryDirs(username)
		if err != nil {
			m.logger.Error().Err(err).Str("username", username).Msg("failed to list story dirs")
			continue
		}
		for _, storyPath := range dirs {
			_, err := m.catalog.GetByPath(ctx, storyPath)
			if errors.Is(err, domain.ErrStoryNotFound) {
				if err := m.store.RemoveTree(storyPath); err != nil {
					m.logger.Error().Err(err).Str("path", storyPath).Msg("failed to remove orphan story dir")
					continue
				}
				report.OrphanStoryDirs = append(report.OrphanStoryDirs, storyPath)
				orphansReclaimedTotal.Inc()
				m.logger.Info().Str("path", storyPath).Msg("removed orphan story dir")
				continue
			}
			if err != nil {
				return report, fmt.Errorf("failed to look up catalog entry for %q: %w", storyPath, err)
			}
		}
	}

	return report, nil
}
