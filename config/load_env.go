package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/subosito/gotenv"
)

// LoadEnv loads config/envs/.env.<env> into the process environment. A missing
// file is not an error; variables already set in the environment win.
func LoadEnv(env string) error {
	return loadEnvFile("config/envs/.env." + env)
}

func loadEnvFile(envFile string) error {
	err := gotenv.Load(envFile)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("No .env file found, using OS environment",
			slog.String("file", envFile))
		return nil
	}
	if err != nil {
		return fmt.Errorf("error loading %s: %w", envFile, err)
	}
	return nil
}
