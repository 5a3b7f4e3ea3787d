// Package config assembles the service configuration from defaults, an
// optional JSON file, environment variables (and a .env file) and
// command-line flags, in that order of increasing priority.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultJWTSecretKey is only suitable for local development.
const DefaultJWTSecretKey = "dev-insecure-jwt-secret"

type Config struct {
	RunAddr                  string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel                 string        `env:"LOG_LEVEL" validate:"loglevel"`
	DatabaseDSN              string        `env:"DATABASE_URL"`
	DBFileName               string        `env:"FILE_STORAGE_PATH" validate:"filepath"`
	DBConnectionTimeout      time.Duration `env:"DB_CONNECTION_TIMEOUT" validate:"gt=0"`
	MigrationsDir            string        `env:"MIGRATIONS_DIR" validate:"required"`
	JWTSecretKey             string        `env:"JWT_SECRET_KEY" validate:"required"`
	JWTAlgorithm             string        `env:"JWT_ALGORITHM" validate:"jwtalg"`
	AccessTokenExpireMinutes int           `env:"ACCESS_TOKEN_EXPIRE_MINUTES" validate:"gt=0"`
	OpenAIAPIKey             string        `env:"OPENAI_API_KEY"`
	OpenAIModel              string        `env:"OPENAI_MODEL" validate:"required"`
	OpenAIBaseURL            string        `env:"OPENAI_BASE_URL" validate:"omitempty,url"`
	AnalysisTimeout          time.Duration `env:"ANALYSIS_TIMEOUT" validate:"gt=0"`
	TrustedSubnet            string        `env:"TRUSTED_SUBNET" validate:"omitempty,cidr"`
	BackfillQueueCapacity    int           `env:"BACKFILL_QUEUE_CAPACITY" validate:"gt=0"`
	BackfillInterval         time.Duration `env:"BACKFILL_INTERVAL" validate:"gt=0"`
	BackfillMaxAttempts      int           `env:"BACKFILL_MAX_ATTEMPTS" validate:"gt=0"`
	ConfigFile               string        `env:"CONFIG"`
}

// AccessTokenTTL is the lifetime of tokens issued at login.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// IsAnalysisProviderConfigured reports whether an external analysis
// provider credential is available.
func (c *Config) IsAnalysisProviderConfigured() bool {
	return c.OpenAIAPIKey != ""
}

var defaultConfig = Config{
	RunAddr:                  ":8080",
	LogLevel:                 "info",
	DBConnectionTimeout:      10 * time.Second,
	MigrationsDir:            "cmd/contentapi/migrations",
	JWTSecretKey:             DefaultJWTSecretKey,
	JWTAlgorithm:             "HS256",
	AccessTokenExpireMinutes: 60,
	OpenAIModel:              "gpt-4o-mini",
	AnalysisTimeout:          5 * time.Second,
	BackfillQueueCapacity:    100,
	BackfillInterval:         5 * time.Second,
	BackfillMaxAttempts:      5,
}

// fileConfig mirrors Config for the JSON file. Durations are written as
// Go duration strings ("5s").
type fileConfig struct {
	RunAddr                  *string `json:"server_address"`
	LogLevel                 *string `json:"log_level"`
	DatabaseDSN              *string `json:"database_url"`
	DBFileName               *string `json:"file_storage_path"`
	DBConnectionTimeout      *string `json:"db_connection_timeout"`
	MigrationsDir            *string `json:"migrations_dir"`
	JWTSecretKey             *string `json:"jwt_secret_key"`
	JWTAlgorithm             *string `json:"jwt_algorithm"`
	AccessTokenExpireMinutes *int    `json:"access_token_expire_minutes"`
	OpenAIAPIKey             *string `json:"openai_api_key"`
	OpenAIModel              *string `json:"openai_model"`
	OpenAIBaseURL            *string `json:"openai_base_url"`
	AnalysisTimeout          *string `json:"analysis_timeout"`
	TrustedSubnet            *string `json:"trusted_subnet"`
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	args                []string
}

func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithArgs replaces os.Args[1:] as the source of command-line flags.
func WithArgs(args []string) InitOption {
	return func(options *initOptions) {
		options.args = args
	}
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
		args:                os.Args[1:],
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	_ = godotenv.Load()

	values := &Config{}
	applyDefaults(values, defaultConfig)

	flagValues := Config{}
	applyDefaults(&flagValues, defaultConfig)
	var setFlags map[string]bool
	if !options.disableFlagsParsing {
		var err error
		setFlags, err = parseFlags(&flagValues, options.args)
		if err != nil {
			return nil, err
		}
	}

	configFile := os.Getenv("CONFIG")
	if setFlags["c"] {
		configFile = flagValues.ConfigFile
	}
	if configFile != "" {
		if err := values.loadJSONFile(configFile); err != nil {
			return nil, err
		}
		values.ConfigFile = configFile
	}

	if err := env.Parse(values); err != nil {
		return nil, err
	}

	values.applyFlags(&flagValues, setFlags)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}

func parseFlags(values *Config, args []string) (map[string]bool, error) {
	fs := flag.NewFlagSet("contentapi", flag.ContinueOnError)
	fs.StringVar(&values.RunAddr, "a", values.RunAddr, "address and port to run server")
	fs.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
	fs.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "a string with the database connection details")
	fs.StringVar(&values.DBFileName, "f", values.DBFileName, "JSON file name with database")
	fs.StringVar(&values.JWTSecretKey, "k", values.JWTSecretKey, "secret key used to sign access tokens")
	fs.StringVar(&values.TrustedSubnet, "t", values.TrustedSubnet, "trusted subnet in CIDR notation")
	fs.StringVar(&values.ConfigFile, "c", values.ConfigFile, "path to a JSON configuration file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	return setFlags, nil
}

func (c *Config) applyFlags(flagValues *Config, setFlags map[string]bool) {
	if setFlags["a"] {
		c.RunAddr = flagValues.RunAddr
	}
	if setFlags["l"] {
		c.LogLevel = flagValues.LogLevel
	}
	if setFlags["d"] {
		c.DatabaseDSN = flagValues.DatabaseDSN
	}
	if setFlags["f"] {
		c.DBFileName = flagValues.DBFileName
	}
	if setFlags["k"] {
		c.JWTSecretKey = flagValues.JWTSecretKey
	}
	if setFlags["t"] {
		c.TrustedSubnet = flagValues.TrustedSubnet
	}
}

func (c *Config) loadJSONFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSONFile(): error while `os.ReadFile()` calling: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSONFile(): error while `json.Unmarshal()` calling: %w", err)
	}

	setString(&c.RunAddr, fc.RunAddr)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.DBFileName, fc.DBFileName)
	setString(&c.MigrationsDir, fc.MigrationsDir)
	setString(&c.JWTSecretKey, fc.JWTSecretKey)
	setString(&c.JWTAlgorithm, fc.JWTAlgorithm)
	setString(&c.OpenAIAPIKey, fc.OpenAIAPIKey)
	setString(&c.OpenAIModel, fc.OpenAIModel)
	setString(&c.OpenAIBaseURL, fc.OpenAIBaseURL)
	setString(&c.TrustedSubnet, fc.TrustedSubnet)
	if fc.AccessTokenExpireMinutes != nil {
		c.AccessTokenExpireMinutes = *fc.AccessTokenExpireMinutes
	}

	for _, d := range []struct {
		target *time.Duration
		value  *string
	}{
		{&c.DBConnectionTimeout, fc.DBConnectionTimeout},
		{&c.AnalysisTimeout, fc.AnalysisTimeout},
	} {
		if d.value == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("in internal/config/config.go/loadJSONFile(): error while `time.ParseDuration()` calling: %w", err)
		}
		*d.target = parsed
	}

	return nil
}

func setString(target *string, value *string) {
	if value != nil {
		*target = *value
	}
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func validateJWTAlgorithm(fieldLevel validator.FieldLevel) bool {
	switch fieldLevel.Field().String() {
	case "HS256", "HS384", "HS512":
		return true
	}

	return false
}

func (c *Config) validate() error {
	validate := validator.New()

	for tag, fn := range map[string]validator.Func{
		"loglevel": validateLogLevel,
		"filepath": validateFilePath,
		"jwtalg":   validateJWTAlgorithm,
	} {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}

	return validate.Struct(c)
}
