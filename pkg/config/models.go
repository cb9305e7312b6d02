package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Auth      AuthConfig
	API       APIConfig
}

type ServerConfig struct {
	Address      string
	Env          string
	AllowOrigins []string `mapstructure:"allowOrigins"`
}

type AuthConfig struct {
	// Verify turns on local HMAC verification of the join token. Off by
	// default: the relay otherwise treats the token as an opaque string.
	Verify    bool   `mapstructure:"verify"`
	JWTSecret string `mapstructure:"jwtSecret"`
}

type TransportConfig struct {
	// IdleTimeout bounds how long a connection may stay silent before the
	// read side gives up and the session is torn down.
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
	PingInterval time.Duration `mapstructure:"pingInterval"`
}

type APIConfig struct {
	// BaseURL of the account/map HTTP API. Empty disables lookups.
	BaseURL string        `mapstructure:"baseURL"`
	Timeout time.Duration `mapstructure:"timeout"`
}
