package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/lootmarket-backend/internal/catalog"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
)

type countRefresher interface {
	RefreshCounts(ctx context.Context) ([]catalog.CategoryView, error)
}

// NewCatalogCountsJob rebuilds the cached per-category listing counts so the
// storefront never serves a stale badge for longer than one cron interval.
func NewCatalogCountsJob(logg *logger.Logger, catalogSvc countRefresher) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	return &catalogCountsJob{logg: logg, catalog: catalogSvc}, nil
}

type catalogCountsJob struct {
	logg    *logger.Logger
	catalog countRefresher
}

func (j *catalogCountsJob) Name() string { return "catalog-counts" }

func (j *catalogCountsJob) Run(ctx context.Context) error {
	categories, err := j.catalog.RefreshCounts(ctx)
	if err != nil {
		return fmt.Errorf("refresh category counts: %w", err)
	}
	var active int64
	for _, c := range categories {
		active += c.ListingCount
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"categories":      len(categories),
		"active_listings": active,
	})
	j.logg.Info(logCtx, "category counts refreshed")
	return nil
}
