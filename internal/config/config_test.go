package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ACCESS_TTL", "")
	cfg := Load()
	if cfg.HTTPPort != "8081" || cfg.StoreBackend != "postgres" || cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("TOTALS_BACKEND", "memory")
	t.Setenv("RATE_LIMIT_BACKEND", "memory")
	t.Setenv("REFRESH_TTL", "2h")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("AUTO_MIGRATE", "0")

	cfg := Load()
	if !cfg.Production() {
		t.Error("prod env not detected")
	}
	if cfg.NeedsRedis() {
		t.Error("memory backends should not need redis")
	}
	if cfg.RefreshTTL != 2*time.Hour || cfg.RateLimitPerMin != 30 || cfg.AutoMigrate {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestBadValuesFallBack(t *testing.T) {
	t.Setenv("TOTALS_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "many")
	t.Setenv("AUTO_MIGRATE", "maybe")

	cfg := Load()
	if cfg.TotalsTTL != 24*time.Hour || cfg.RateLimitPerMin != 120 || !cfg.AutoMigrate {
		t.Fatalf("fallbacks not used: %+v", cfg)
	}
}

func TestCORSOriginsList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://admin.example.com, ,http://localhost:5173")
	cfg := Load()
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://localhost:5173" {
		t.Fatalf("origins = %q", cfg.CORSOrigins)
	}
}

func TestValidateBackends(t *testing.T) {
	cases := []struct {
		queue, totals string
		ok            bool
	}{
		{"memory", "memory", true},
		{"redis", "redis", true},
		{"memory", "redis", true},
		{"redis", "memory", false},
	}
	for _, tc := range cases {
		err := App{QueueBackend: tc.queue, TotalsBackend: tc.totals}.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("queue=%s totals=%s: err = %v", tc.queue, tc.totals, err)
		}
	}
}

func TestBackendOptions(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "25")
	t.Setenv("DB_CONN_MAX_LIFETIME", "30m")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "2")
	cfg := Load()
	if p := cfg.Pool(); p.MaxOpen != 25 || p.MaxIdle != 5 || p.MaxLifetime != 30*time.Minute {
		t.Errorf("pool = %+v", p)
	}
	if r := cfg.Redis(); r.Addr != "cache:6379" || r.DB != 2 {
		t.Errorf("redis = %+v", r)
	}
}
