package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2154, cfg.Territory.SRID)
	assert.Equal(t, "code", cfg.Territory.CodeField)
	assert.Equal(t, 200, cfg.Grid.Resolution)
	assert.Equal(t, 200, cfg.Grid.TrainingResolution)
	assert.InDelta(t, 2000.0, cfg.Grid.SectorBuffer, 0.001)
	assert.Equal(t, []string{"47"}, cfg.Weights.CommercePrefixes)
	assert.Equal(t, 256, cfg.Features.ChunkSize)
	assert.False(t, cfg.Features.Extended)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "NA", cfg.Output.NoData)
	assert.Equal(t, "schema.yaml", cfg.Output.Schema)
	assert.Equal(t, "features", cfg.Output.Table)
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
territory:
  department: "67"
  boundary: departements.geojson
grid:
  resolution: 500
  snap: true
layers:
  buildings: BATIMENT.shp
  poi:
    amenity: amenity.geojson
    shop: shop.geojson
weights:
  tranche:
    "01": 1.5
    "02": 4
  naf_functions:
    "47": commerce
features:
  extended: true
  min_built_surface: 10
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "67", cfg.Territory.Department)
	assert.Equal(t, 500, cfg.Grid.Resolution)
	assert.True(t, cfg.Grid.Snap)
	assert.Equal(t, "BATIMENT.shp", cfg.Layers.Buildings)
	assert.Equal(t, "shop.geojson", cfg.Layers.POI["shop"])
	assert.InDelta(t, 4.0, cfg.Weights.Tranche["02"], 0.001)
	assert.Equal(t, "commerce", cfg.Weights.NAFFunctions["47"])
	assert.True(t, cfg.Features.Extended)
	assert.InDelta(t, 10.0, cfg.Features.MinBuiltSurface, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 2154, cfg.Territory.SRID)
	assert.Equal(t, "csv", cfg.Output.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
output:
  format: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("POPGRID_OUTPUT_FORMAT", "parquet")
	t.Setenv("POPGRID_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "parquet", cfg.Output.Format)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("POPGRID_GRID_RESOLUTION", "1000")
	t.Setenv("POPGRID_TERRITORY_DEPARTMENT", "2A")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Grid.Resolution)
	assert.Equal(t, "2A", cfg.Territory.Department)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("grid: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the Load defaults populated.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Territory.SRID = 2154
	cfg.Grid.Resolution = 200
	cfg.Grid.TrainingResolution = 200
	cfg.Grid.SectorBuffer = 2000
	cfg.Output.Format = "csv"
	cfg.Output.Path = "features.csv"
	cfg.Output.Targets = "targets.csv"
	return cfg
}

func TestValidateApplication_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Territory.Department = "67"
	cfg.Territory.Boundary = "departements.geojson"
	cfg.Layers.Buildings = "BATIMENT.shp"

	assert.NoError(t, cfg.Validate("application"))
}

func TestValidateApplication_MissingFields(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("application")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "territory.boundary is required")
	assert.Contains(t, err.Error(), "territory.department is required")
	assert.Contains(t, err.Error(), "layers.buildings is required")
}

func TestValidateModel(t *testing.T) {
	cfg := validDefaults()
	cfg.Layers.Buildings = "BATIMENT.shp"

	err := cfg.Validate("model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layers.mobiliscope is required")

	cfg.Layers.Mobiliscope = "mobiliscope/"
	assert.NoError(t, cfg.Validate("model"))
}

func TestValidatePostgresNeedsDatabase(t *testing.T) {
	cfg := validDefaults()
	cfg.Layers.Buildings = "BATIMENT.shp"
	cfg.Layers.Mobiliscope = "mobiliscope/"
	cfg.Output.Format = "postgres"

	err := cfg.Validate("model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/popgrid"
	assert.NoError(t, cfg.Validate("model"))
}

func TestValidateResolutionBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Territory.Department = "67"
	cfg.Territory.Boundary = "departements.geojson"

	cfg.Grid.Resolution = 50
	err := cfg.Validate("grid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid.resolution must be between 100 and 1000")

	cfg.Grid.Resolution = 1001
	assert.Error(t, cfg.Validate("grid"))

	cfg.Grid.Resolution = 1000
	assert.NoError(t, cfg.Validate("grid"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
