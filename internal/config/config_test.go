package config

import (
	"strings"
	"testing"
	"time"
)

func envMap(values map[string]string) func(string) string {
	return func(name string) string {
		return values[name]
	}
}

func requiredEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":      "postgres://localhost/auth",
		"JWT_SECRET":        "jwt-secret",
		"TOKEN_HASH_SECRET": "hash-secret",
	}
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(requiredEnv()))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.JWTAlgorithm != "HS256" {
		t.Errorf("JWTAlgorithm = %q, want HS256", cfg.JWTAlgorithm)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v", cfg.RefreshTokenTTL)
	}
	if cfg.MaxLoginAttempts != 5 || cfg.AccountLockDuration != 15*time.Minute {
		t.Errorf("lockout = %d/%v", cfg.MaxLoginAttempts, cfg.AccountLockDuration)
	}
	if cfg.BcryptRounds != 12 {
		t.Errorf("BcryptRounds = %d", cfg.BcryptRounds)
	}
	if cfg.JWTLeeway != 0 {
		t.Errorf("JWTLeeway = %v", cfg.JWTLeeway)
	}
	if cfg.Port != "8080" || cfg.Environment != "development" {
		t.Errorf("port/env = %s/%s", cfg.Port, cfg.Environment)
	}
	if cfg.RunMigrationsOnStart {
		t.Error("RunMigrationsOnStart should default to false")
	}
}

func TestLoadFromOverrides(t *testing.T) {
	env := requiredEnv()
	env["JWT_ALGORITHM"] = "hs512"
	env["JWT_LEEWAY_SECONDS"] = "30"
	env["ACCESS_TOKEN_EXPIRE_MINUTES"] = "5"
	env["REFRESH_TOKEN_EXPIRE_DAYS"] = "30"
	env["MAX_LOGIN_ATTEMPTS"] = "3"
	env["ACCOUNT_LOCK_MINUTES"] = "60"
	env["BCRYPT_ROUNDS"] = "10"
	env["RUN_MIGRATIONS_ON_STARTUP"] = "yes"
	env["DB_MAX_OPEN_CONNS"] = "not-a-number"

	cfg, err := LoadFrom(envMap(env))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	auth := cfg.AuthConfig()
	if auth.JWTAlgorithm != "HS512" {
		t.Errorf("JWTAlgorithm = %q", auth.JWTAlgorithm)
	}
	if auth.JWTLeeway != 30*time.Second {
		t.Errorf("JWTLeeway = %v", auth.JWTLeeway)
	}
	if auth.AccessTokenTTL != 5*time.Minute || auth.RefreshTokenTTL != 30*24*time.Hour {
		t.Errorf("ttls = %v/%v", auth.AccessTokenTTL, auth.RefreshTokenTTL)
	}
	if auth.MaxLoginAttempts != 3 || auth.AccountLockDuration != time.Hour {
		t.Errorf("lockout = %d/%v", auth.MaxLoginAttempts, auth.AccountLockDuration)
	}
	if auth.BcryptRounds != 10 {
		t.Errorf("BcryptRounds = %d", auth.BcryptRounds)
	}
	if !cfg.RunMigrationsOnStart {
		t.Error("RunMigrationsOnStart should be true")
	}
	if cfg.DBMaxOpenConns != 10 {
		t.Errorf("malformed int should fall back, got %d", cfg.DBMaxOpenConns)
	}
}

func TestLoadFromErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		wantErr string
	}{
		{
			name:    "missing database url",
			mutate:  func(env map[string]string) { delete(env, "DATABASE_URL") },
			wantErr: "DATABASE_URL",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(env map[string]string) { env["JWT_SECRET"] = "   " },
			wantErr: "JWT_SECRET",
		},
		{
			name:    "missing token hash secret",
			mutate:  func(env map[string]string) { delete(env, "TOKEN_HASH_SECRET") },
			wantErr: "TOKEN_HASH_SECRET",
		},
		{
			name:    "shared secrets",
			mutate:  func(env map[string]string) { env["TOKEN_HASH_SECRET"] = env["JWT_SECRET"] },
			wantErr: "must differ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := requiredEnv()
			tt.mutate(env)

			_, err := LoadFrom(envMap(env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
