package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	fileNamePattern = regexp.MustCompile(`^(\d{14})_([a-z0-9]+(?:_[a-z0-9]+)*)\.sql$`)
	nonWord         = regexp.MustCompile(`[^a-z0-9]+`)
)

type sqlFile struct {
	version string
	name    string
}

// ValidateDir checks migration files on disk before they are embedded.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	_, err := scan(os.DirFS(dir), ".")
	return err
}

// ValidateEmbedded checks the copy compiled into the binary.
func ValidateEmbedded() error {
	_, err := scan(migrationsFS, embeddedDir)
	return err
}

// scan returns the .sql files under dir ordered by version. Every file must
// be named <YYYYMMDDHHMMSS>_<snake_name>.sql, use a unique version, and carry
// a goose Up section followed by a Down section.
func scan(fsys fs.FS, dir string) ([]sqlFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations %q: %w", dir, err)
	}
	byVersion := map[string]string{}
	var files []sqlFile
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		name := entry.Name()
		m := fileNamePattern.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("migration %q: want YYYYMMDDHHMMSS_name.sql", name)
		}
		if _, err := time.Parse(versionLayout, m[1]); err != nil {
			return nil, fmt.Errorf("migration %q: version is not a timestamp", name)
		}
		if prev, dup := byVersion[m[1]]; dup {
			return nil, fmt.Errorf("migrations %q and %q share version %s", prev, name, m[1])
		}
		byVersion[m[1]] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", name, err)
		}
		if err := checkSections(string(body)); err != nil {
			return nil, fmt.Errorf("migration %q: %w", name, err)
		}
		files = append(files, sqlFile{version: m[1], name: name})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations in %q", dir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

func checkSections(body string) error {
	up := strings.Index(body, "-- +goose Up")
	down := strings.Index(body, "-- +goose Down")
	switch {
	case up < 0:
		return errors.New(`missing "-- +goose Up"`)
	case down < 0:
		return errors.New(`missing "-- +goose Down"`)
	case down < up:
		return errors.New("Down section precedes Up")
	}
	return nil
}

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- TODO: %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- TODO: revert %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration into dir and returns its
// path. The version is the current UTC second, bumped past the newest
// existing file so versions stay strictly increasing.
func CreateSQLMigration(dir, title string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	slug := strings.Trim(nonWord.ReplaceAllString(strings.ToLower(title), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", title)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %q: %w", dir, err)
	}

	version := time.Now().UTC().Truncate(time.Second)
	if existing, err := scan(os.DirFS(dir), "."); err == nil {
		latest, _ := time.Parse(versionLayout, existing[len(existing)-1].version)
		if !version.After(latest) {
			version = latest.Add(time.Second)
		}
	}

	target := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version.Format(versionLayout), slug))
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	if _, err := fmt.Fprintf(f, sqlTemplate, slug); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write migration: %w", err)
	}
	return target, f.Close()
}
