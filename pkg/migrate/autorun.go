package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/lootmarket-backend/pkg/config"
	"github.com/angelmondragon/lootmarket-backend/pkg/db"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
)

// shouldAutoRun: sqlite databases are always brought up to date on boot;
// postgres only in dev with the auto-migrate flag.
func shouldAutoRun(cfg *config.Config, driver string) bool {
	return driver == db.DriverSQLite || (cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate)
}

// MaybeRunDev applies the embedded migrations when shouldAutoRun allows it.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !shouldAutoRun(cfg, client.Driver()) {
		return nil
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	dialect := DialectFor(client.Driver())
	ctx = logg.WithField(ctx, "dialect", dialect)
	logg.Info(ctx, "applying migrations on boot")
	if err := Up(ctx, sqlDB, dialect); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logg.Info(ctx, "migrations applied")
	return nil
}
