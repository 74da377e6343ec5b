package database

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()

	db, err := New(Config{
		Path:    filepath.Join(dir, "prices.db"),
		Profile: ProfileCache,
		Name:    "prices",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "prices", db.Name())
	assert.NoError(t, db.Conn().Ping())
}

func TestNew_DefaultsToStandardProfile(t *testing.T) {
	dir := t.TempDir()

	db, err := New(Config{
		Path: filepath.Join(dir, "default.db"),
		Name: "default",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.profile)
}

func TestBuildConnectionString_Profiles(t *testing.T) {
	tests := []struct {
		profile  DatabaseProfile
		contains string
	}{
		{ProfileCache, "synchronous(OFF)"},
		{ProfileStandard, "synchronous(NORMAL)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			connStr := buildConnectionString("/tmp/x.db", tt.profile)
			assert.True(t, strings.Contains(connStr, "journal_mode(WAL)"))
			assert.True(t, strings.Contains(connStr, tt.contains))
		})
	}
}
