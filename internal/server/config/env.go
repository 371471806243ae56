package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/expensebook/expensebook/internal/timex"
)

type lookupFunc func(key string) (string, bool)

// parseEnv overlays environment variables onto config. Unset or empty
// variables leave the current value in place.
//
//	PORT                  listen port (becomes ":PORT")
//	DATABASE_URL          PostgreSQL DSN
//	ACCESS_TOKEN_SECRET   access token HMAC secret
//	ACCESS_TOKEN_EXPIRY   access token lifetime ("1d", "15m")
//	REFRESH_TOKEN_SECRET  refresh token HMAC secret
//	REFRESH_TOKEN_EXPIRY  refresh token lifetime
//	CORS_ORIGIN           allowed CORS origin
//	COOKIE_SECURE         Secure attribute on session cookies
//	LOG_LEVEL, REDIS_ADDR, BCRYPT_COST
//	S3_ROOT_USER, S3_ROOT_PASSWORD, S3_BUCKET, S3_REGION, S3_BASE_ENDPOINT
func parseEnv(config *Config, lookup lookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PORT"); ok {
		config.EndpointAddrHTTP = ":" + strings.TrimPrefix(v, ":")
	}

	strs := map[string]*string{
		"DATABASE_URL":         &config.DatabaseDSN,
		"ACCESS_TOKEN_SECRET":  &config.AccessTokenSecret,
		"REFRESH_TOKEN_SECRET": &config.RefreshTokenSecret,
		"CORS_ORIGIN":          &config.CORSOrigin,
		"LOG_LEVEL":            &config.LogLevel,
		"REDIS_ADDR":           &config.RedisAddr,
		"S3_ROOT_USER":         &config.S3RootUser,
		"S3_ROOT_PASSWORD":     &config.S3RootPassword,
		"S3_BUCKET":            &config.S3Bucket,
		"S3_REGION":            &config.S3Region,
		"S3_BASE_ENDPOINT":     &config.S3BaseEndpoint,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"ACCESS_TOKEN_EXPIRY", &config.AccessTokenValidityDuration},
		{"REFRESH_TOKEN_EXPIRY", &config.RefreshTokenValidityDuration},
	}
	for _, d := range durations {
		v, ok := get(d.key)
		if !ok {
			continue
		}
		parsed, err := timex.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v, ok := get("COOKIE_SECURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("env COOKIE_SECURE: %w", err)
		}
		config.CookieSecure = b
	}

	if v, ok := get("BCRYPT_COST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env BCRYPT_COST: %w", err)
		}
		config.BcryptCost = n
	}

	return nil
}
