package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Territory TerritoryConfig `yaml:"territory" mapstructure:"territory"`
	Grid      GridConfig      `yaml:"grid" mapstructure:"grid"`
	Layers    LayersConfig    `yaml:"layers" mapstructure:"layers"`
	Weights   WeightsConfig   `yaml:"weights" mapstructure:"weights"`
	Features  FeaturesConfig  `yaml:"features" mapstructure:"features"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// TerritoryConfig selects the department gridded in application mode.
type TerritoryConfig struct {
	Department string `yaml:"department" mapstructure:"department"`
	SRID       int    `yaml:"srid" mapstructure:"srid"`
	Boundary   string `yaml:"boundary" mapstructure:"boundary"`
	CodeField  string `yaml:"code_field" mapstructure:"code_field"`
}

// GridConfig configures the tessellation.
type GridConfig struct {
	Resolution         int     `yaml:"resolution" mapstructure:"resolution"`
	TrainingResolution int     `yaml:"training_resolution" mapstructure:"training_resolution"`
	Snap               bool    `yaml:"snap" mapstructure:"snap"`
	SectorBuffer       float64 `yaml:"sector_buffer" mapstructure:"sector_buffer"`
}

// LayersConfig holds the paths of the input layers. POI maps an OSM tag to
// its GeoJSON extract.
type LayersConfig struct {
	Buildings      string            `yaml:"buildings" mapstructure:"buildings"`
	Streets        string            `yaml:"streets" mapstructure:"streets"`
	POI            map[string]string `yaml:"poi" mapstructure:"poi"`
	Establishments string            `yaml:"establishments" mapstructure:"establishments"`
	Census         string            `yaml:"census" mapstructure:"census"`
	Mobiliscope    string            `yaml:"mobiliscope" mapstructure:"mobiliscope"`
}

// WeightsConfig holds the lookup tables of the feature computers.
type WeightsConfig struct {
	POI              string             `yaml:"poi" mapstructure:"poi"`
	Tranche          map[string]float64 `yaml:"tranche" mapstructure:"tranche"`
	NAFJobs          string             `yaml:"naf_jobs" mapstructure:"naf_jobs"`
	NAFFunctions     map[string]string  `yaml:"naf_functions" mapstructure:"naf_functions"`
	CommercePrefixes []string           `yaml:"commerce_prefixes" mapstructure:"commerce_prefixes"`
	JobSectors       []string           `yaml:"job_sectors" mapstructure:"job_sectors"`
}

// FeaturesConfig tunes the aggregation.
type FeaturesConfig struct {
	Workers         int     `yaml:"workers" mapstructure:"workers"`
	ChunkSize       int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	Extended        bool    `yaml:"extended" mapstructure:"extended"`
	MinBuiltSurface float64 `yaml:"min_built_surface" mapstructure:"min_built_surface"`
	ActiveOnly      bool    `yaml:"active_only" mapstructure:"active_only"`
}

// OutputConfig selects where the feature table goes.
type OutputConfig struct {
	Format   string `yaml:"format" mapstructure:"format"`
	Path     string `yaml:"path" mapstructure:"path"`
	NoData   string `yaml:"nodata" mapstructure:"nodata"`
	Schema   string `yaml:"schema" mapstructure:"schema"`
	Expected string `yaml:"expected" mapstructure:"expected"`
	Table    string `yaml:"table" mapstructure:"table"`
	Upsert   bool   `yaml:"upsert" mapstructure:"upsert"`
	Targets  string `yaml:"targets" mapstructure:"targets"`
	Sectors  string `yaml:"sectors" mapstructure:"sectors"`
}

// StoreConfig configures run tracking. DatabaseURL is a postgres:// URL or a
// SQLite path; empty disables tracking. It is also the PostgreSQL output DSN.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("POPGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("territory.department", "")
	v.SetDefault("territory.srid", 2154)
	v.SetDefault("territory.boundary", "")
	v.SetDefault("territory.code_field", "code")
	v.SetDefault("grid.resolution", 200)
	v.SetDefault("grid.training_resolution", 200)
	v.SetDefault("grid.snap", false)
	v.SetDefault("grid.sector_buffer", 2000)
	v.SetDefault("layers.buildings", "")
	v.SetDefault("layers.streets", "")
	v.SetDefault("layers.establishments", "")
	v.SetDefault("layers.census", "")
	v.SetDefault("layers.mobiliscope", "")
	v.SetDefault("weights.poi", "")
	v.SetDefault("weights.naf_jobs", "")
	v.SetDefault("weights.commerce_prefixes", []string{"47"})
	v.SetDefault("features.workers", 0)
	v.SetDefault("features.chunk_size", 256)
	v.SetDefault("features.extended", false)
	v.SetDefault("features.min_built_surface", 0.0)
	v.SetDefault("features.active_only", false)
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.path", "features.csv")
	v.SetDefault("output.nodata", "NA")
	v.SetDefault("output.schema", "schema.yaml")
	v.SetDefault("output.expected", "")
	v.SetDefault("output.table", "features")
	v.SetDefault("output.upsert", false)
	v.SetDefault("output.targets", "targets.csv")
	v.SetDefault("output.sectors", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Validate checks the settings a command needs. mode is "grid",
// "application", "model" or "targets".
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	require(c.Territory.SRID > 0, "territory.srid must be > 0")
	require(c.Grid.Resolution >= 100 && c.Grid.Resolution <= 1000, "grid.resolution must be between 100 and 1000")
	require(c.Grid.TrainingResolution >= 100 && c.Grid.TrainingResolution <= 1000, "grid.training_resolution must be between 100 and 1000")
	require(c.Grid.SectorBuffer >= 0, "grid.sector_buffer must be >= 0")
	require(c.Features.Workers >= 0, "features.workers must be >= 0")
	require(c.Features.MinBuiltSurface >= 0, "features.min_built_surface must be >= 0")

	switch mode {
	case "grid":
		require(c.Territory.Boundary != "", "territory.boundary is required")
		require(c.Territory.Department != "", "territory.department is required")
	case "application":
		require(c.Territory.Boundary != "", "territory.boundary is required")
		require(c.Territory.Department != "", "territory.department is required")
		require(c.Layers.Buildings != "", "layers.buildings is required")
		require(c.Output.Path != "" || c.Output.Format == "postgres", "output.path is required")
	case "model":
		require(c.Layers.Mobiliscope != "", "layers.mobiliscope is required")
		require(c.Layers.Buildings != "", "layers.buildings is required")
		require(c.Output.Path != "" || c.Output.Format == "postgres", "output.path is required")
	case "targets":
		require(c.Layers.Mobiliscope != "", "layers.mobiliscope is required")
		require(c.Output.Targets != "", "output.targets is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if c.Output.Format == "postgres" && mode != "targets" && mode != "grid" {
		require(c.Store.DatabaseURL != "", "store.database_url is required for postgres output")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
