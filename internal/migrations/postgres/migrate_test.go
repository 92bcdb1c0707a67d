package postgres

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var migrationName = regexp.MustCompile(`^\d{6}_[a-z_]+\.(up|down)\.sql$`)

func TestMigrationFiles_ArePaired(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, f := range files {
		require.Regexp(t, migrationName, f)
		base := f[:strings.Index(f, ".")]
		if strings.HasSuffix(f, ".up.sql") {
			ups[base] = true
		} else {
			downs[base] = true
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrationFiles_CreateEveryTable(t *testing.T) {
	var all strings.Builder
	err := fs.WalkDir(migrationFS, sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".up.sql") {
			return err
		}
		raw, err := migrationFS.ReadFile(path)
		all.Write(raw)
		return err
	})
	require.NoError(t, err)

	tables := []string{
		"users", "institutes", "services", "business_hours", "closures", "therapists",
		"appointments", "reviews", "messages", "loyalty_accounts", "loyalty_transactions",
		"gallery_images", "workshops", "workshop_registrations", "favorites",
	}
	for _, table := range tables {
		assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
}
