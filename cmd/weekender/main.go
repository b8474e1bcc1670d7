package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/devkekops/weekender/internal/app/config"
	"github.com/devkekops/weekender/internal/app/logger"
	"github.com/devkekops/weekender/internal/app/server"
)

func main() {
	randBytes := make([]byte, 16)
	if _, err := rand.Read(randBytes); err != nil {
		logger.Logger.Fatal().Err(err).Msg("generate session key")
	}

	cfg := config.Config{
		RunAddress:     "localhost:8081",
		SecretKey:      hex.EncodeToString(randBytes),
		SettingsFile:   "settings.yaml",
		MaxTxAttempts:  5,
		RetryBaseDelay: 10 * time.Millisecond,
		LogLevel:       "info",
	}

	if err := env.Parse(&cfg); err != nil {
		logger.Logger.Fatal().Err(err).Msg("parse environment")
	}

	flag.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "run address")
	flag.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "database URI, in-memory store when empty")
	flag.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "session secret key")
	flag.StringVar(&cfg.SettingsFile, "p", cfg.SettingsFile, "settings file")
	flag.Parse()

	logger.SetLevel(cfg.LogLevel)
	logger.Logger.Fatal().Err(server.Serve(&cfg)).Msg("server stopped")
}
