package db

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const migrationsLogPrefix = "db:migrations"

// Migration is one forward-only schema step, named after its file.
type Migration struct {
	Name string
	SQL  string
}

// LoadMigrationFiles returns the .sql files in dir on fsys ordered by file
// name. Blank files are rejected so a truncated checkout fails loudly.
func LoadMigrationFiles(fsys afero.Fs, dir string) ([]Migration, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(path.Ext(e.Name()), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		file := path.Join(dir, name)
		data, err := afero.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return nil, fmt.Errorf("%s - migration %s is empty", migrationsLogPrefix, file)
		}
		migrations = append(migrations, Migration{Name: name, SQL: string(data)})
	}

	slog.Debug(fmt.Sprintf("%s - Found %d migrations in %s", migrationsLogPrefix, len(migrations), dir))
	return migrations, nil
}
