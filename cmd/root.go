package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"log/slog"

	"github.com/joho/godotenv"
	"github.com/opsdata/etl-scripts/config"
	"github.com/opsdata/etl-scripts/logger"
	"github.com/opsdata/etl-scripts/notify"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "etl cli for warehouse and spreadsheet jobs",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the base config file (.yaml or .ini)")

	rootCmd.AddCommand(newWarehouseCmd())
	rootCmd.AddCommand(newCovidCmd())
	rootCmd.AddCommand(newRolesCmd())
	rootCmd.AddCommand(newAttachmentCmd())
	rootCmd.AddCommand(newConfigTemplateCmd())
}

func isRunningOnGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// initializeConfigAndLogger loads .env, the config files and the logger.
// The returned function closes the log file.
func initializeConfigAndLogger() (*config.Config, *slog.Logger, func() error, error) {
	bootLog := logger.New(os.Stderr, "text", slog.LevelInfo)
	if !isRunningOnGitHubActions() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			bootLog.Error("Error loading .env file")
			return nil, nil, nil, err
		}
	}

	cfg, err := config.Load(configPath, os.Getenv("APP_ENV"))
	if err != nil {
		bootLog.Error(fmt.Sprintf("Error reading config: %v", err))
		return nil, nil, nil, err
	}

	log, closeLog, err := logger.NewLogger(cfg.Log, cfg.Files.LogFile)
	if err != nil {
		bootLog.Error(fmt.Sprintf("Error creating logger: %v", err))
		return nil, nil, nil, err
	}
	log.Info("Configuration loaded", "path", configPath, "env", cfg.Env)

	return cfg, log, closeLog, nil
}

// newNotifier returns the email notifier, or nil when email is not
// configured. Pipelines skip notifications without one.
func newNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	mailer, err := notify.NewMailer(notify.MailerConfig{
		Host:     cfg.Settings.SMTPHost,
		Port:     cfg.Settings.SMTPPort,
		Username: cfg.Credentials.EmailAddress,
		Password: cfg.Credentials.EmailPassword,
		From:     cfg.Credentials.EmailAddress,
		To:       notify.SplitRecipients(cfg.Credentials.EmailRecipient),
	}, log)
	if err != nil {
		log.Warn("Email notifications are disabled", "error", err)
		return nil
	}
	return mailer
}
