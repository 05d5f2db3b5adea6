package postgres

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreNumberedAndUnique(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	pattern := regexp.MustCompile(`^(\d{4})_[a-z_]+\.up\.sql$`)
	seen := map[string]string{}
	for _, e := range entries {
		match := pattern.FindStringSubmatch(e.Name())
		require.NotNil(t, match, "unexpected migration name %q", e.Name())
		prev, dup := seen[match[1]]
		require.False(t, dup, "version %s used by %s and %s", match[1], prev, e.Name())
		seen[match[1]] = e.Name()
	}
}

func TestDocumentLedgerEnforcesOneFinalDocumentPerType(t *testing.T) {
	contents, err := migrationFS.ReadFile("migrations/0003_documents.up.sql")
	require.NoError(t, err)
	sql := string(contents)
	assert.Contains(t, sql, "UNIQUE INDEX")
	assert.Contains(t, sql, "(order_id, doc_type) WHERE is_final")
	assert.NotContains(t, strings.ToLower(sql), "bytea", "documents never embed bytes")
}
