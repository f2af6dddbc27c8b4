// Package config loads process configuration from the environment. A
// local .env file is honored in development.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env            string        `env:"ENV" envDefault:"development"`
	Debug          bool          `env:"DEBUG"`
	Port           string        `env:"PORT" envDefault:"8080"`
	DatabasePath   string        `env:"DATABASE_PATH" envDefault:"botfolio.db"`
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"botfolio-dev-secret"`
	InitialCredits float64       `env:"INITIAL_CREDITS" envDefault:"1000000"`
	LotSize        float64       `env:"LOT_SIZE" envDefault:"10"`
	BotInterval    time.Duration `env:"BOT_INTERVAL" envDefault:"1m"`
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"60s"`
}

func Load() (Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	var cfg Config
	return cfg, env.Parse(&cfg)
}
