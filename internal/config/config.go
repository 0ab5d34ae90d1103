package config

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	TokenConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetDataFolder() string
	GetLogLevel() string
	GetPort() string
	GetDemoUser() string
	GetDemoPassword() string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Token
}

// New returns the environment backed configuration. Values from a .env file in
// the working directory are loaded first; variables already set win.
func New() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}
	return mainConfig{}
}

// NewFromFile is New with an explicit dotenv file.
func NewFromFile(filenames ...string) (Config, error) {
	if err := godotenv.Load(filenames...); err != nil {
		return nil, err
	}
	return mainConfig{}, nil
}
