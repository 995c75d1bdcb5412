package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	markUp    = "-- +goose Up"
	markDown  = "-- +goose Down"
	markBegin = "-- +goose StatementBegin"
	markEnd   = "-- +goose StatementEnd"
)

func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS lints every .sql file at the root of fsys and reports all
// problems found: file naming, duplicate versions, missing or misordered
// Up/Down sections and unbalanced statement blocks.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var problems error
	versions := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		match := migrationName.FindStringSubmatch(name)
		if match == nil {
			problems = multierr.Append(problems, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name))
			continue
		}
		if first, dup := versions[match[1]]; dup {
			problems = multierr.Append(problems, fmt.Errorf("duplicate migration version %s in %q and %q", match[1], first, name))
		}
		versions[match[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err == nil {
			err = lintBody(string(body))
		}
		if err != nil {
			problems = multierr.Append(problems, fmt.Errorf("migration %q: %w", name, err))
		}
	}
	return problems
}

func lintBody(sql string) error {
	up, down := strings.Index(sql, markUp), strings.Index(sql, markDown)
	if up < 0 {
		return fmt.Errorf("missing %q", markUp)
	}
	if down < 0 {
		return fmt.Errorf("missing %q", markDown)
	}
	if down < up {
		return errors.New("down section precedes up")
	}
	if b, e := strings.Count(sql, markBegin), strings.Count(sql, markEnd); b != e {
		return fmt.Errorf("unbalanced StatementBegin/StatementEnd (%d/%d)", b, e)
	}
	return nil
}
