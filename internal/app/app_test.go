// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homescan/listing-crawler/internal/app"
	"github.com/homescan/listing-crawler/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Provider = "memory"
	cfg.Publisher.Provider = "memory"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildWiresMemoryProviders(t *testing.T) {
	a, err := app.Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, a)
	defer a.Close()
}

func TestBuildWithLocalArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Provider = "local"
	cfg.Storage.LocalDir = t.TempDir()

	a, err := app.Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
}

func TestBuildRejectsLocalArchiveWithoutDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Provider = "local"
	cfg.Storage.LocalDir = "/proc/definitely/not/writable"

	_, err := app.Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuildWithArchivingAndPublishingDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Provider = "none"
	cfg.Publisher.Provider = "none"

	a, err := app.Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
}
