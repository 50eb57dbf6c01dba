package config

import (
	"fmt"

	"github.com/spf13/viper"
)

var templateValues = map[string]any{
	"files.log_file":                 "Runtime_info.log",
	"files.query_file":               "query.sql",
	"files.save_to_filepath":         "./data",
	"files.download_location":        "./downloads",
	"files.download_file_name":       "attachment.xlsx",
	"database.driver":                "sqlserver",
	"database.user_dsn":              "localhost",
	"database.port":                  1433,
	"database.name":                  "",
	"database.temp_db":               "Database.Table",
	"database.prod_db":               "Database.Table",
	"database.auth":                  "direct",
	"database.max_retries":           DefaultMaxRetries,
	"database.retry_wait":            DefaultRetryWait.String(),
	"database.batch_size":            DefaultBatchSize,
	"database.max_idle_conns":        DefaultMaxIdleConns,
	"credentials.service_account":    "",
	"credentials.service_pw":         "",
	"credentials.ldap_account":       "",
	"credentials.ldap_pw":            "",
	"credentials.email_address":      "",
	"credentials.email_password":     "",
	"credentials.email_recipient":    "",
	"emails.email_to_subject":        "Email Subject",
	"emails.email_to_error_subject":  "ERROR OCCURRED",
	"emails.email_from_subject":      "",
	"settings.smtp_host":             "smtp-mail.outlook.com",
	"settings.smtp_port":             DefaultSMTPPort,
	"settings.imap_host":             "outlook.office365.com",
	"settings.imap_port":             DefaultIMAPPort,
	"settings.imap_folder":           "INBOX",
	"covid.historical_url":           "https://api.covidtracking.com/v1/states/daily.csv",
	"covid.current_url":              "https://api.covidtracking.com/v1/states/current.csv",
	"roles.input_glob":               "./input/*.xlsx",
	"roles.mapping_file":             "./Role-ID.xlsx",
	"roles.mapping_sheet":            "Role-ID",
	"roles.exclude":                  "BATCH,CUTOVER,FUNCTIONAL,CONFIG,RESIDUAL",
	"roles.output_dir":               "./output",
	"attachment.skip_rows":           4,
	"attachment.statuses":            "In Progress,New,Pending Acknowledgement",
	"attachment.table":               "dbo.Attachment",
	"log.level":                      "info",
	"log.format":                     "text",
	"extract.backoff.retry_wait_min": "1s",
	"extract.backoff.retry_wait_max": "30s",
	"extract.backoff.retry_max":      5,
}

// WriteTemplate writes a config file with every key present and empty
// secrets. The format (INI or YAML) follows the extension of path.
func WriteTemplate(path string) error {
	configType, err := TypeFromPath(path)
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType(configType)
	for key, value := range templateValues {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config template %s: %w", path, err)
	}
	return nil
}
