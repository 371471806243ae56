package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/expensebook/expensebook/internal/flagx"
	"github.com/expensebook/expensebook/internal/timex"
)

// JsonConfig mirrors Config for decoding. Pointer fields distinguish "absent"
// from the zero value, so a partial file only overrides what it names.
type JsonConfig struct {
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	AccessTokenSecret            *string         `json:"access_token_secret"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenSecret           *string         `json:"refresh_token_secret"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   *int            `json:"bcrypt_cost"`
	CookieSecure                 *bool           `json:"cookie_secure"`
	CORSOrigin                   *string         `json:"cors_origin"`
	LogLevel                     *string         `json:"log_level"`
	RedisAddr                    *string         `json:"redis_addr"`
	LoginAttemptLimit            *int            `json:"login_attempt_limit"`
	LoginAttemptWindow           *timex.Duration `json:"login_attempt_window"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
}

// parseJson overlays the JSON file named by -c/-config onto config. Without
// such a flag it does nothing.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var c JsonConfig
	if err := json.Unmarshal(b, &c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.CORSOrigin, c.CORSOrigin)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.LoginAttemptWindow != nil {
		config.LoginAttemptWindow = c.LoginAttemptWindow.Duration
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.LoginAttemptLimit != nil {
		config.LoginAttemptLimit = *c.LoginAttemptLimit
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
