package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Documented fallbacks, applied only when the key is absent.
const (
	DefaultRetryWait  = 60 * time.Second
	DefaultMaxRetries = 50
	DefaultSMTPPort   = 587
	DefaultIMAPPort   = 993
	DefaultBatchSize  = 500

	// DefaultMaxIdleConns matches database/sql's own pool default.
	DefaultMaxIdleConns = 2
)

// Spreadsheet defaults of the roles and attachment commands.
var (
	DefaultExcludedRoleWords  = []string{"BATCH", "CUTOVER", "FUNCTIONAL", "CONFIG", "RESIDUAL"}
	DefaultAttachmentStatuses = []string{"In Progress", "New", "Pending Acknowledgement"}
)

const (
	DefaultMappingSheet       = "Role-ID"
	DefaultAttachmentSkipRows = 4
)

type Config struct {
	Files       FilesConfig       `mapstructure:"files"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Emails      EmailsConfig      `mapstructure:"emails"`
	Settings    SettingsConfig    `mapstructure:"settings"`
	Covid       CovidConfig       `mapstructure:"covid"`
	Roles       RolesConfig       `mapstructure:"roles"`
	Attachment  AttachmentConfig  `mapstructure:"attachment"`
	Log         LogConfig         `mapstructure:"log"`
	Extract     ExtractConfig     `mapstructure:"extract"`
	Env         string            `mapstructure:"-"`

	v *viper.Viper
}

type FilesConfig struct {
	LogFile          string `mapstructure:"log_file"`
	QueryFile        string `mapstructure:"query_file"`
	SaveToFilepath   string `mapstructure:"save_to_filepath"`
	DownloadLocation string `mapstructure:"download_location"`
	DownloadFileName string `mapstructure:"download_file_name"`
}

type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver"`
	UserDSN        string        `mapstructure:"user_dsn"`
	Port           int           `mapstructure:"port"`
	Name           string        `mapstructure:"name"`
	TempDB         string        `mapstructure:"temp_db"`
	ProdDB         string        `mapstructure:"prod_db"`
	Auth           string        `mapstructure:"auth"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryWait      time.Duration `mapstructure:"retry_wait"`
	BatchSize      int           `mapstructure:"batch_size"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	InitQueryFiles []string      `mapstructure:"init_query_files"`
}

type CredentialsConfig struct {
	ServiceAccount string `mapstructure:"service_account"`
	ServicePW      string `mapstructure:"service_pw"`
	LDAPAccount    string `mapstructure:"ldap_account"`
	LDAPPW         string `mapstructure:"ldap_pw"`
	EmailAddress   string `mapstructure:"email_address"`
	EmailPassword  string `mapstructure:"email_password"`
	EmailRecipient string `mapstructure:"email_recipient"`
}

type EmailsConfig struct {
	ToSubject      string `mapstructure:"email_to_subject"`
	ToErrorSubject string `mapstructure:"email_to_error_subject"`
	FromSubject    string `mapstructure:"email_from_subject"`
}

type SettingsConfig struct {
	SMTPHost   string `mapstructure:"smtp_host"`
	SMTPPort   int    `mapstructure:"smtp_port"`
	IMAPHost   string `mapstructure:"imap_host"`
	IMAPPort   int    `mapstructure:"imap_port"`
	IMAPFolder string `mapstructure:"imap_folder"`
}

type CovidConfig struct {
	HistoricalURL string `mapstructure:"historical_url"`
	CurrentURL    string `mapstructure:"current_url"`
}

type RolesConfig struct {
	InputGlob    string   `mapstructure:"input_glob"`
	MappingFile  string   `mapstructure:"mapping_file"`
	MappingSheet string   `mapstructure:"mapping_sheet"`
	Exclude      []string `mapstructure:"exclude"`
	OutputDir    string   `mapstructure:"output_dir"`
}

type AttachmentConfig struct {
	SkipRows int      `mapstructure:"skip_rows"`
	Statuses []string `mapstructure:"statuses"`
	Table    string   `mapstructure:"table"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ExtractConfig struct {
	Backoff BackoffConfig `mapstructure:"backoff"`
}

type BackoffConfig struct {
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	RetryMax     int           `mapstructure:"retry_max"`
}

// secretKeys can be supplied as ETL_<SECTION>_<KEY> environment variables.
var secretKeys = []string{
	"credentials.service_account",
	"credentials.service_pw",
	"credentials.ldap_account",
	"credentials.ldap_pw",
	"credentials.email_address",
	"credentials.email_password",
	"credentials.email_recipient",
}

// EnvVar returns the environment variable bound to a config key.
func EnvVar(key string) string {
	return "ETL_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
}

// TypeFromPath maps a config file extension to a viper config type.
func TypeFromPath(path string) (string, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "yaml", "yml":
		return "yaml", nil
	case "ini":
		return "ini", nil
	default:
		return "", fmt.Errorf("unsupported config file extension '%s' for %s", ext, path)
	}
}

// NewConfig loads the configuration from the provided base config reader
// and merges it with the environment-specific configuration.
func NewConfig(configType string, baseConfigReader io.Reader, envConfigReader io.Reader, env string) (*Config, error) {
	if env == "" { // Use the provided 'env' or default to "dev"
		env = "dev"
	}

	v := viper.New()
	v.SetConfigType(configType)

	v.SetDefault("database.retry_wait", DefaultRetryWait)
	v.SetDefault("database.max_retries", DefaultMaxRetries)
	v.SetDefault("database.batch_size", DefaultBatchSize)
	v.SetDefault("database.max_idle_conns", DefaultMaxIdleConns)
	v.SetDefault("settings.smtp_port", DefaultSMTPPort)
	v.SetDefault("settings.imap_port", DefaultIMAPPort)
	v.SetDefault("settings.imap_folder", "INBOX")
	v.SetDefault("roles.mapping_sheet", DefaultMappingSheet)
	v.SetDefault("roles.exclude", DefaultExcludedRoleWords)
	v.SetDefault("attachment.skip_rows", DefaultAttachmentSkipRows)
	v.SetDefault("attachment.statuses", DefaultAttachmentStatuses)

	for _, key := range secretKeys {
		if err := v.BindEnv(key, EnvVar(key)); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	// Read the base configuration
	if err := v.ReadConfig(baseConfigReader); err != nil {
		return nil, fmt.Errorf("error reading base config: %w", err)
	}

	// Merge with environment-specific configuration (only if provided)
	if envConfigReader != nil {
		if err := v.MergeConfig(envConfigReader); err != nil {
			return nil, fmt.Errorf("error merging %s config: %w", env, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	config.Env = env
	config.v = v

	return &config, nil
}

// Load reads the config file at path and, when present next to it, the
// overlay config.<env>.<ext>.
func Load(path, env string) (*Config, error) {
	configType, err := TypeFromPath(path)
	if err != nil {
		return nil, err
	}

	baseConfigFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening base config file: %w", err)
	}
	defer baseConfigFile.Close()

	var envConfigReader io.Reader
	if env != "" {
		envConfigFilename := filepath.Join(filepath.Dir(path), fmt.Sprintf("config.%s%s", env, filepath.Ext(path)))
		if _, err := os.Stat(envConfigFilename); err == nil {
			envConfigFile, err := os.Open(envConfigFilename)
			if err != nil {
				return nil, fmt.Errorf("error opening environment config file: %w", err)
			}
			defer envConfigFile.Close()
			envConfigReader = envConfigFile
		}
	}

	return NewConfig(configType, baseConfigFile, envConfigReader, env)
}

// Require reports every key that is unset or blank, joined into one error.
func (c *Config) Require(keys ...string) error {
	var errs []error
	for _, key := range keys {
		if c.v == nil || strings.TrimSpace(c.v.GetString(key)) == "" {
			errs = append(errs, fmt.Errorf("missing required config key '%s'", key))
		}
	}
	return errors.Join(errs...)
}
