package configx

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// DefaultEnvFile is loaded when no explicit file is given and it exists.
const DefaultEnvFile = ".env"

func MustNew[T any](prefix, envFile string) *T {
	conf, err := New[T](prefix, envFile)
	if err != nil {
		panic(err)
	}
	return conf
}

// New loads envFile (or .env when envFile is empty) into the process
// environment and then fills T through envconfig. Variables that are already
// set in the environment win over values from the file.
func New[T any](prefix, envFile string) (*T, error) {
	if path := strings.TrimSpace(envFile); path != "" {
		if err := exportEnvironment(path); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else if err := loadDotEnvIfExists(DefaultEnvFile); err != nil {
		return nil, fmt.Errorf("failed to load default env file: %w", err)
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, err
	}

	return &conf, nil
}

func loadDotEnvIfExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return godotenv.Load(path)
}

// exportEnvironment reads any viper supported file (.env, .yaml, .json, .toml)
// and exports its keys as upper-cased environment variables.
func exportEnvironment(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if strings.HasSuffix(path, ".env") || !strings.Contains(baseName(path), ".") {
		v.SetConfigType("env")
	}
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for k, val := range v.AllSettings() {
		key := strings.ToUpper(k)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return err
		}
	}

	return nil
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
