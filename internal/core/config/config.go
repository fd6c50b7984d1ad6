package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Driver string

const (
	DriverFile  Driver = "file"
	DriverRedis Driver = "redis"
)

type ArchiveCfg struct {
	Driver      Driver
	OutputDir   string
	RedisAddr   string
	Namespace   string
	TTL         time.Duration
	PoolSize    int
	DialTimeout time.Duration
	OpTimeout   time.Duration
}

type EventsCfg struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	QueueSize int
	GroupID   string
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	Workers               int
	WaitTimeout           time.Duration
	Overwrite             bool
	OutputPrefix          string
	TerrainCacheSize      int
	GeographicEquivalence bool
	TileMaxAge            time.Duration
	TileCacheSize         int

	Archive ArchiveCfg
	Events  EventsCfg
	Metrics MetricsCfg
}

func FromEnv() Config {
	workers := getint("WORKERS", runtime.NumCPU())
	if workers < 1 {
		workers = 1
	}
	driver := Driver(strings.ToLower(getenv("ARCHIVE_DRIVER", string(DriverFile))))
	if driver != DriverRedis {
		driver = DriverFile
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		Workers:               workers,
		WaitTimeout:           getduration("WAIT_TIMEOUT", 10*time.Second),
		Overwrite:             getbool("OVERWRITE", false),
		OutputPrefix:          getenv("OUTPUT_PREFIX", ""),
		TerrainCacheSize:      getint("TERRAIN_CACHE_SIZE", 16),
		GeographicEquivalence: getbool("SRS_GEOGRAPHIC_EQUIVALENCE", true),
		TileMaxAge:            getduration("TILE_MAX_AGE", time.Minute),
		TileCacheSize:         getint("TILE_CACHE_SIZE", 1024),

		Archive: ArchiveCfg{
			Driver:      driver,
			OutputDir:   getenv("OUTPUT_DIR", "out"),
			RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
			Namespace:   getenv("ARCHIVE_NAMESPACE", "tiles"),
			TTL:         getduration("ARCHIVE_TTL", 0),
			PoolSize:    getint("REDIS_POOL_SIZE", 16),
			DialTimeout: getduration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			OpTimeout:   getduration("ARCHIVE_OP_TIMEOUT", 2*time.Second),
		},
		Events: EventsCfg{
			Enabled:   getbool("EVENTS_ENABLED", false),
			Brokers:   split(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:     getenv("KAFKA_TOPIC", "scene-cells"),
			QueueSize: getint("EVENTS_QUEUE", 1024),
			GroupID:   getenv("KAFKA_GROUP_ID", "tile-cache"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// split parses "a:1, b:2" into trimmed, non-empty parts.
func split(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
