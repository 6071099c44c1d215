package migrations_test

import (
	"strings"
	"testing"

	"job-sync/internal/database/migration"
	"job-sync/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations_LoadInOrder(t *testing.T) {
	migs, err := migration.Load(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, int64(i+1), m.Version, m.Filename)
	}
}

func TestEmbeddedMigrations_FlagsSurviveSurvivorDeletion(t *testing.T) {
	migs, err := migration.Load(migrations.FS)
	require.NoError(t, err)

	var last string
	for _, m := range migs {
		if strings.Contains(m.SQL, "job_duplicate_flags_survivor_id_fkey") {
			last = m.SQL
		}
	}
	require.NotEmpty(t, last, "survivor foreign key is redefined")
	assert.Contains(t, last, "ON DELETE SET NULL")
	assert.Contains(t, last, "survivor_id DROP NOT NULL")
	assert.Contains(t, last, "ON job_duplicate_flags (job_id, survivor_id)", "ON CONFLICT (job_id, survivor_id) needs a unique index")
}
