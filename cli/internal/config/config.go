// Package config resolves CLI settings from flags, the environment, .env
// files and an optional .libsql-go.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem the CLI reads and writes.
var AppFs = afero.NewOsFs()

// Keys of the settings.
const (
	KeyURL              = "url"
	KeyToken            = "token"
	KeyDebug            = "debug"
	KeyMinServerVersion = "min_server_version"
)

// DefaultMinServerVersion is the oldest server the CLI is tested against.
const DefaultMinServerVersion = "0.24.0"

// Config holds the resolved settings.
type Config struct {
	URL              string
	Token            string
	Debug            bool
	MinServerVersion string
	// File is the config file that was read, if any.
	File string
}

// Load reads .env and .env.local into the environment, .env.local winning
// over the process environment. It then resolves every key of v from bound
// flags, LIBSQL_* variables, the config file and the defaults, in that
// order of precedence.
func Load(v *viper.Viper) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	v.SetFs(AppFs)
	v.SetConfigName(".libsql-go")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "libsql-go"))

	v.SetEnvPrefix("LIBSQL")
	v.AutomaticEnv()

	v.SetDefault(KeyMinServerVersion, DefaultMinServerVersion)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return &Config{
		URL:              v.GetString(KeyURL),
		Token:            v.GetString(KeyToken),
		Debug:            v.GetBool(KeyDebug),
		MinServerVersion: v.GetString(KeyMinServerVersion),
		File:             v.ConfigFileUsed(),
	}, nil
}

func loadEnvFiles() error {
	for _, f := range []struct {
		name     string
		override bool
	}{{".env", false}, {".env.local", true}} {
		path, err := filepath.Abs(f.name)
		if err != nil {
			return err
		}
		if _, err := AppFs.Stat(path); err != nil {
			continue
		}
		if err := loadEnv(path, f.override); err != nil {
			return err
		}
	}
	return nil
}

// loadEnv reads name through AppFs. Variables already set are kept unless
// override is true.
func loadEnv(name string, override bool) error {
	f, err := AppFs.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(name), err)
	}
	for k, val := range env {
		if _, set := os.LookupEnv(k); set && !override {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return err
		}
	}
	return nil
}
