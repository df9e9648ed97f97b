package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiofolio/audiofolio-server/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ENV", "LOG_LEVEL", "DATA_PATH", "LIBRARY_ROOTS", "WATCH_ENABLED"} {
		t.Setenv(key, "")
	}
	cfg, err := Load(Values{EnvFile: "does-not-exist.env"})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Watch.SettleDelay)
	assert.Equal(t, 30*time.Second, cfg.Watch.MinRescanInterval)
	assert.Equal(t, 0, cfg.Scan.Workers)
	assert.NotEmpty(t, cfg.Data.BasePath)
	// the language preference always ends with English
	require.NotEmpty(t, cfg.Scan.PreferredLanguages)
	assert.Equal(t, "eng", cfg.Scan.PreferredLanguages[len(cfg.Scan.PreferredLanguages)-1])
}

func TestLoadFlagsBeatEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ENV", "staging")

	cfg, err := Load(Values{LogLevel: "debug", EnvFile: "does-not-exist.env"})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "staging", cfg.App.Environment)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(Values{Environment: "prod", EnvFile: "does-not-exist.env"})
	assert.Error(t, err)

	_, err = Load(Values{LogLevel: "trace", EnvFile: "does-not-exist.env"})
	assert.Error(t, err)

	_, err = Load(Values{WatchSettleDelay: "fast", EnvFile: "does-not-exist.env"})
	assert.Error(t, err)
}

func TestParseRoots(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []domain.RootFolder
		wantErr bool
	}{
		{
			name:  "typed entries",
			input: "root:/audiobooks,author:/library/by-author",
			want: []domain.RootFolder{
				{Path: "/audiobooks", Type: domain.FolderTypeRoot},
				{Path: "/library/by-author", Type: domain.FolderTypeAuthor},
			},
		},
		{
			name:  "bare path defaults to root",
			input: "/audiobooks",
			want:  []domain.RootFolder{{Path: "/audiobooks", Type: domain.FolderTypeRoot}},
		},
		{
			name:  "single file and folder",
			input: "single-file:/books/one.m4b,single-folder:/books/two",
			want: []domain.RootFolder{
				{Path: "/books/one.m4b", Type: domain.FolderTypeSingleFile},
				{Path: "/books/two", Type: domain.FolderTypeSingleFolder},
			},
		},
		{
			name:  "whitespace and empty entries ignored",
			input: " /a ,, /b ",
			want: []domain.RootFolder{
				{Path: "/a", Type: domain.FolderTypeRoot},
				{Path: "/b", Type: domain.FolderTypeRoot},
			},
		},
		{
			name:    "unknown type",
			input:   "shelf:/books",
			wantErr: true,
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRoots(tt.input, "")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRootsEnvFallback(t *testing.T) {
	got, err := parseRoots("", "author:/from-env")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.FolderTypeAuthor, got[0].Type)

	// a flag value wins over the environment
	got, err = parseRoots("/from-flag", "author:/from-env")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/from-flag", got[0].Path)
}
