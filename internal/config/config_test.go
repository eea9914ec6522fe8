package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://apietender.uzex.uz/api/common/DealsList", cfg.ETender.BaseURL)
	assert.Equal(t, "https://etender.uzex.uz", cfg.ETender.Origin)
	assert.Equal(t, 20, cfg.ETender.PageSize)
	assert.Equal(t, 5, cfg.ETender.Concurrency)

	assert.Equal(t, "https://japi-reyting.mc.uz/api", cfg.Reyting.BaseURL)
	assert.Equal(t, 100, cfg.Reyting.PerPage)
	assert.Equal(t, []int{0, 2}, cfg.Reyting.Types)
	assert.Equal(t, 200, cfg.Reyting.DetailLimit)

	assert.Equal(t, 3, cfg.Scrape.MaxRetries)
	assert.Equal(t, 15*time.Minute, cfg.Scrape.StaleJobTimeout)
	assert.Equal(t, 3, cfg.Scrape.EmptyPageStreak)

	assert.Equal(t, 12, cfg.Enrich.LookbackMonths)

	assert.NotEmpty(t, cfg.Filter.ConstructionKeywords)
	assert.NotEmpty(t, cfg.Filter.NonConstructionKeywords)
	assert.NotEmpty(t, cfg.Filter.Regions)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MARKETINTEL_ETENDER_PAGE_SIZE", "50")
	t.Setenv("MARKETINTEL_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.ETender.PageSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}
