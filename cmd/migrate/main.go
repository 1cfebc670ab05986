package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/lootmarket-backend/pkg/bootstrap"
	"github.com/angelmondragon/lootmarket-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations source directory (create, validate)")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// Source-tree commands run without config or a database.
	if handled := runSourceCommand(*cmd, *dir, *name); handled {
		return
	}

	boot := context.Background()
	rt, err := bootstrap.Start(boot, "migrate")
	if err != nil {
		rt.Fatal(boot, "migrate bootstrap failed", err)
	}
	sqlDB, err := rt.DB.SQL()
	if err != nil {
		rt.Fatal(boot, "sql handle unavailable", err)
	}

	dialect := migrate.DialectFor(rt.DB.Driver())
	ctx := rt.Logger.WithFields(boot, map[string]any{
		"env":     rt.Config.App.Env,
		"cmd":     *cmd,
		"dialect": dialect,
	})
	rt.Logger.Info(ctx, "migrate ready")

	switch *cmd {
	case "up", "down", "status":
		err = migrate.Run(ctx, sqlDB, dialect, *cmd)
	case "version":
		if *version == "" {
			err = fmt.Errorf("missing -version for version command")
			break
		}
		err = migrate.MigrateToVersion(ctx, sqlDB, dialect, *version)
	default:
		err = fmt.Errorf("unknown -cmd value: %s", *cmd)
	}
	if err != nil {
		rt.Fatal(ctx, "migration failed", err)
	}
	if err := rt.Close(); err != nil {
		rt.Logger.Error(ctx, "closing database", err)
	}
	rt.Logger.Info(ctx, "migration complete")
}

// runSourceCommand handles commands that only touch the migrations directory.
func runSourceCommand(cmd, dir, name string) bool {
	switch cmd {
	case "create":
		if name == "" {
			exitf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(dir, name)
		if err != nil {
			exitf("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return true
	case "validate":
		if err := migrate.ValidateDir(dir); err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return true
	}
	return false
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
