package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings.
type Config struct {
	// Neo4j graph store
	Neo4j Neo4jConfig `mapstructure:"neo4j"`

	// Redis cache backend
	Redis RedisConfig `mapstructure:"redis"`

	// Issue store
	Storage StorageConfig `mapstructure:"storage"`

	// External map data provider
	Overpass OverpassConfig `mapstructure:"overpass"`

	// Pathfinding parameters
	Routing RoutingConfig `mapstructure:"routing"`

	// Geo-grid cache parameters
	Grid GridConfig `mapstructure:"grid"`

	// HTTP API
	HTTP HTTPConfig `mapstructure:"http"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
}

type StorageConfig struct {
	Type        string `mapstructure:"type"` // "postgres", "sqlite"
	PostgresDSN string `mapstructure:"postgres_dsn"`
	LocalPath   string `mapstructure:"local_path"`
}

type OverpassConfig struct {
	URL            string        `mapstructure:"url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
}

type RoutingConfig struct {
	// SnapRadii is the expanding sequence of bounding-box radii (degrees)
	// tried when mapping a coordinate onto the nearest graph node.
	SnapRadii []float64 `mapstructure:"snap_radii"`
	// AverageSpeedKmh converts route distance into an estimated time.
	AverageSpeedKmh float64 `mapstructure:"average_speed_kmh"`
}

type GridConfig struct {
	// CellSize is the grid partition size in degrees (~1km at the equator).
	CellSize float64 `mapstructure:"cell_size"`
	// CellTTL bounds staleness of per-cell issue-ID lists.
	CellTTL time.Duration `mapstructure:"cell_ttl"`
	// SummaryTTL bounds staleness of per-issue summaries.
	SummaryTTL time.Duration `mapstructure:"summary_ttl"`
	// MaxCells caps how many cells a query may touch before the cache is
	// bypassed in favor of a direct capped range query.
	MaxCells int `mapstructure:"max_cells"`
	// FallbackLimit caps the direct query for oversized boxes. Truncation
	// by recency, not a completeness guarantee.
	FallbackLimit int `mapstructure:"fallback_limit"`
}

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Default returns default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".civicroute", "local.db"),
		},
		Overpass: OverpassConfig{
			URL:            "https://overpass-api.de/api/interpreter",
			Timeout:        60 * time.Second,
			RequestsPerSec: 1,
		},
		Routing: RoutingConfig{
			SnapRadii:       []float64{0.001, 0.005, 0.01, 0.05},
			AverageSpeedKmh: 30,
		},
		Grid: GridConfig{
			CellSize:      0.01,
			CellTTL:       5 * time.Minute,
			SummaryTTL:    10 * time.Minute,
			MaxCells:      100,
			FallbackLimit: 500,
		},
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Load loads configuration from a file, the environment, and defaults,
// in ascending order of precedence (env wins).
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("neo4j", cfg.Neo4j)
	v.SetDefault("redis", cfg.Redis)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("overpass", cfg.Overpass)
	v.SetDefault("routing", cfg.Routing)
	v.SetDefault("grid", cfg.Grid)
	v.SetDefault("http", cfg.HTTP)

	v.SetEnvPrefix("CIVICROUTE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".civicroute")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".civicroute"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence.
func loadEnvFiles() {
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".civicroute", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USERNAME"); user != "" {
		cfg.Neo4j.Username = user
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Neo4j.Password = password
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Neo4j.Database = db
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Redis.Host = host
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Redis.Port = p
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}

	if url := os.Getenv("OVERPASS_URL"); url != "" {
		cfg.Overpass.URL = url
	}
	if timeout := os.Getenv("OVERPASS_TIMEOUT_SECONDS"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil {
			cfg.Overpass.Timeout = time.Duration(secs) * time.Second
		}
	}

	if speed := os.Getenv("ROUTING_AVERAGE_SPEED_KMH"); speed != "" {
		if kmh, err := strconv.ParseFloat(speed, 64); err == nil && kmh > 0 {
			cfg.Routing.AverageSpeedKmh = kmh
		}
	}

	if size := os.Getenv("GRID_CELL_SIZE"); size != "" {
		if deg, err := strconv.ParseFloat(size, 64); err == nil && deg > 0 {
			cfg.Grid.CellSize = deg
		}
	}
	if maxCells := os.Getenv("GRID_MAX_CELLS"); maxCells != "" {
		if n, err := strconv.Atoi(maxCells); err == nil && n > 0 {
			cfg.Grid.MaxCells = n
		}
	}
	if limit := os.Getenv("GRID_FALLBACK_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			cfg.Grid.FallbackLimit = n
		}
	}

	if port := os.Getenv("HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = p
		}
	}
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
