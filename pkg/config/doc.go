// Package config loads application configuration from environment
// variables into annotated structs.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11`:
// optional `.env` files are loaded into the process environment first,
// then `env.Parse` populates any struct using field tags.
//
// # Usage
//
// Describe the configuration as a struct with `env` tags:
//
//	type ServerConfig struct {
//	    Addr     string `env:"PEEK_ADDR" envDefault:":8000"`
//	    LogLevel string `env:"PEEK_LOG_LEVEL" envDefault:"info"`
//	}
//
// Then populate it:
//
//	var cfg ServerConfig
//	if err := config.Load(&cfg); err != nil {
//	    // handle error
//	}
//
// MustLoad panics on failure and suits configuration the process
// cannot start without.
package config
