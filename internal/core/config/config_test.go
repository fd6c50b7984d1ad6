package config

import (
	"runtime"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"WORKERS", "ARCHIVE_DRIVER", "WAIT_TIMEOUT", "SRS_GEOGRAPHIC_EQUIVALENCE", "KAFKA_BROKERS", "KAFKA_GROUP_ID", "TILE_CACHE_SIZE"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Workers != max(runtime.NumCPU(), 1) || c.WaitTimeout != 10*time.Second {
		t.Fatalf("workers=%d wait=%v", c.Workers, c.WaitTimeout)
	}
	if c.Archive.Driver != DriverFile || !c.GeographicEquivalence {
		t.Fatalf("driver=%q geo=%v", c.Archive.Driver, c.GeographicEquivalence)
	}
	if len(c.Events.Brokers) != 1 || c.Events.Brokers[0] != "localhost:9092" {
		t.Fatalf("brokers=%v", c.Events.Brokers)
	}
	if c.Events.GroupID != "tile-cache" || c.TileCacheSize != 1024 {
		t.Fatalf("group=%q tile cache=%d", c.Events.GroupID, c.TileCacheSize)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("WORKERS", "-3")
	t.Setenv("ARCHIVE_DRIVER", "REDIS")
	t.Setenv("ARCHIVE_TTL", "90s")
	t.Setenv("OVERWRITE", "yes")
	t.Setenv("SRS_GEOGRAPHIC_EQUIVALENCE", "false")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("WAIT_TIMEOUT", "not-a-duration")

	c := FromEnv()
	if c.Workers != 1 {
		t.Fatalf("workers=%d", c.Workers)
	}
	if c.Archive.Driver != DriverRedis || c.Archive.TTL != 90*time.Second {
		t.Fatalf("archive %+v", c.Archive)
	}
	if !c.Overwrite || c.GeographicEquivalence {
		t.Fatalf("overwrite=%v geo=%v", c.Overwrite, c.GeographicEquivalence)
	}
	if len(c.Events.Brokers) != 2 || c.Events.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers=%q", c.Events.Brokers)
	}
	if c.WaitTimeout != 10*time.Second {
		t.Fatalf("bad duration should fall back, got %v", c.WaitTimeout)
	}
}
