package config

import "testing"

func TestDefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.App.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.App.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Retrieval.ChunkSize != 500 || cfg.Retrieval.ChunkOverlap != 50 || cfg.Retrieval.TopK != 5 {
		t.Fatalf("retrieval defaults = %+v", cfg.Retrieval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("APP_PORT", "9999")
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.App.Port != 9999 {
		t.Fatalf("port = %d, want 9999", cfg.App.Port)
	}
	if cfg.Database.Driver != "mysql" {
		t.Fatalf("driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("jwt secret = %q, want env-secret", cfg.Auth.JWTSecret)
	}
}

func TestDSNByDriver(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.User = "u"
	cfg.Database.Password = "p"
	cfg.Database.Host = "db"
	cfg.Database.Port = 5432
	cfg.Database.DB = "chatdocs"
	cfg.Database.Params = "sslmode=disable"

	if got, want := cfg.DSN(), "postgres://u:p@db:5432/chatdocs?sslmode=disable"; got != want {
		t.Fatalf("postgres dsn = %q, want %q", got, want)
	}

	cfg.Database.Driver = "mysql"
	cfg.Database.Port = 3306
	cfg.Database.Params = "parseTime=true"
	if got, want := cfg.DSN(), "u:p@tcp(db:3306)/chatdocs?parseTime=true"; got != want {
		t.Fatalf("mysql dsn = %q, want %q", got, want)
	}
}

func TestDatabaseURLWins(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("DATABASE_URL", "postgres://x:y@elsewhere:5432/other")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := cfg.DSN(); got != "postgres://x:y@elsewhere:5432/other" {
		t.Fatalf("dsn = %q, want DATABASE_URL verbatim", got)
	}
}
