package internal

import (
	"fmt"

	"github.com/hbomb79/Selene/internal/api"
	"github.com/hbomb79/Selene/internal/database"
	"github.com/hbomb79/Selene/internal/download"
	"github.com/hbomb79/Selene/internal/engine"
	"github.com/ilyakaznacheev/cleanenv"
)

type (
	// AuthConfig carries the JWT signing secrets and the credentials used to
	// seed the initial admin account on an empty database. Both signing
	// secrets are mandatory and must differ.
	AuthConfig struct {
		AuthTokenSecret    string `yaml:"auth_token_secret" env:"AUTH_TOKEN_SECRET" env-required:"true"`
		RefreshTokenSecret string `yaml:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
		AdminUsername      string `yaml:"admin_username" env:"AUTH_ADMIN_USERNAME" env-default:"admin"`
		AdminPassword      string `yaml:"admin_password" env:"AUTH_ADMIN_PASSWORD"`
	}

	// SeleneConfig is the struct used to contain the various user config
	// supplied by file, or manually inside the code.
	SeleneConfig struct {
		Engine      engine.Config           `yaml:"engine"`
		Downloads   download.Config         `yaml:"downloads"`
		Database    database.DatabaseConfig `yaml:"database" env-required:"true"`
		RestConfig  api.RestConfig          `yaml:"api"`
		Auth        AuthConfig              `yaml:"auth" env-required:"true"`
	}
)

// LoadFromFile loads a YAML configuration file in to a SeleneConfig,
// applying environment variable overrides on top.
func (config *SeleneConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration: %v", err.Error())
	}

	if config.Auth.AuthTokenSecret == config.Auth.RefreshTokenSecret {
		return fmt.Errorf("failed to load configuration: auth and refresh token secrets must differ")
	}

	return nil
}
