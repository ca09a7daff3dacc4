// Package config assembles the runtime configuration from defaults,
// command-line flags, an optional .env file and environment variables,
// then validates the result.
package config

import (
	"flag"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime knob of the application. Environment
// variables override flags, which override the defaults.
type Config struct {
	DBFileName          string        `env:"FILE_STORAGE_PATH" validate:"omitempty,filepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN"`
	LogLevel            string        `env:"LOG_LEVEL" validate:"loglevel"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT"`
}

var defaultConfig = Config{
	DBFileName:          "library.json",
	DatabaseDSN:         "",
	LogLevel:            "info",
	MigrationsDir:       "migrations",
	DBConnectionTimeout: 10,
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

// InitOption customizes New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips flag registration, which tests need
// because the flag package panics on double registration.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds and validates the configuration.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := defaultConfig

	if !options.disableFlagsParsing {
		flag.StringVar(&values.DBFileName, "f", values.DBFileName, "JSON file name with the library database")
		flag.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "A string with the database connection details")
		flag.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
		flag.Parse()
	}

	var valuesFromEnv Config
	err = env.Parse(&valuesFromEnv)
	if err != nil {
		return nil, err
	}

	if valuesFromEnv.DBFileName != "" {
		values.DBFileName = valuesFromEnv.DBFileName
	}

	if valuesFromEnv.DatabaseDSN != "" {
		values.DatabaseDSN = valuesFromEnv.DatabaseDSN
	}

	if valuesFromEnv.LogLevel != "" {
		values.LogLevel = valuesFromEnv.LogLevel
	}

	if valuesFromEnv.MigrationsDir != "" {
		values.MigrationsDir = valuesFromEnv.MigrationsDir
	}

	if valuesFromEnv.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = valuesFromEnv.DBConnectionTimeout
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return &values, nil
}
