package config

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/expensebook/expensebook/internal/flagx"
	"github.com/expensebook/expensebook/internal/timex"
)

// serverFlags lists every flag parseFlags understands; anything else on the
// command line (for example -c) is filtered out before parsing.
var serverFlags = []string{
	"-a", "-d", "-as", "-at", "-rs", "-rt", "-cost", "-secure", "-cors", "-l",
	"-redis", "-login-limit", "-login-window",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags overlays command-line flags onto config.
//
//	-a      HTTP listen address (":8000")
//	-d      PostgreSQL DSN
//	-as/-rs access/refresh token secret
//	-at/-rt access/refresh token lifetime ("15m", "10d")
//	-cost   bcrypt cost
//	-secure Secure attribute on session cookies
//	-cors   allowed CORS origin
//	-l      log level
//	-redis  Redis address for login limiting
//	-u -p -b -g -e  S3 user, password, bucket, region, endpoint
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "as", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "rs", config.RefreshTokenSecret, "refresh token secret")
	fs.Func("at", "access token lifetime", durationFlag(&config.AccessTokenValidityDuration))
	fs.Func("rt", "refresh token lifetime", durationFlag(&config.RefreshTokenValidityDuration))
	fs.IntVar(&config.BcryptCost, "cost", config.BcryptCost, "bcrypt cost")
	fs.Func("secure", "Secure attribute on session cookies", func(s string) error {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		config.CookieSecure = b
		return nil
	})
	fs.StringVar(&config.CORSOrigin, "cors", config.CORSOrigin, "allowed CORS origin")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address for login attempt limiting")
	fs.IntVar(&config.LoginAttemptLimit, "login-limit", config.LoginAttemptLimit, "failed login attempts allowed per window")
	fs.Func("login-window", "login attempt window", durationFlag(&config.LoginAttemptWindow))

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}

func durationFlag(dst *time.Duration) func(string) error {
	return func(s string) error {
		d, err := timex.ParseDuration(s)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}
