package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsdata/etl-scripts/config"
	"github.com/opsdata/etl-scripts/extract"
	"github.com/opsdata/etl-scripts/load"
	"github.com/opsdata/etl-scripts/notify"
	"github.com/opsdata/etl-scripts/template"
	"github.com/opsdata/etl-scripts/utils"
	"github.com/opsdata/etl-scripts/warehouse"
)

// Session is the database handle a pipeline works with.
type Session interface {
	extract.Source
	load.Target
	Close() error
}

// OpenFunc opens a Session.
type OpenFunc func(ctx context.Context, p warehouse.Params, logger *slog.Logger) (Session, error)

// OpenWarehouse opens a real database session.
func OpenWarehouse(ctx context.Context, p warehouse.Params, logger *slog.Logger) (Session, error) {
	session, err := warehouse.Open(ctx, p, logger)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Warehouse copies the result of a read query into a production table,
// inserting only the rows it does not already hold.
type Warehouse struct {
	Config       *config.Config
	Logger       *slog.Logger
	Notifier     notify.Notifier
	Open         OpenFunc
	Executor     *extract.Executor
	Upserter     *load.Upserter
	timeProvider utils.TimeProvider
}

func NewWarehouse(cfg *config.Config, logger *slog.Logger, notifier notify.Notifier, timeProvider utils.TimeProvider) *Warehouse {
	return &Warehouse{
		Config:   cfg,
		Logger:   logger,
		Notifier: notifier,
		Open:     OpenWarehouse,
		Executor: &extract.Executor{
			Logger:       logger,
			Notifier:     notifier,
			RetryWait:    cfg.Database.RetryWait,
			ErrorSubject: cfg.Emails.ToErrorSubject,
			LogFile:      cfg.Files.LogFile,
		},
		Upserter: &load.Upserter{
			Logger:       logger,
			Notifier:     notifier,
			ErrorSubject: cfg.Emails.ToErrorSubject,
			LogFile:      cfg.Files.LogFile,
			BatchSize:    cfg.Database.BatchSize,
		},
		timeProvider: timeProvider,
	}
}

// Run executes the pipeline once and returns the number of rows inserted
// into the production table. Any failure is logged, reported with a
// "Check log" notification and returned unchanged.
func (w *Warehouse) Run(ctx context.Context) (int64, error) {
	inserted, err := w.run(ctx)
	if err != nil {
		w.Logger.Error("Error occurred; Ended program", "error", err)
		notify.BestEffort(ctx, w.Notifier, w.Logger, notify.Message{
			Subject:    w.Config.Emails.ToErrorSubject,
			Body:       "Check log",
			Attachment: w.Config.Files.LogFile,
		})
		return 0, err
	}
	return inserted, nil
}

func (w *Warehouse) run(ctx context.Context) (int64, error) {
	cfg := w.Config
	if err := cfg.Require(warehouseKeys(cfg)...); err != nil {
		return 0, err
	}

	params, err := connectionParams(cfg)
	if err != nil {
		return 0, err
	}
	staging, err := warehouse.ParseTableRef(cfg.Database.TempDB)
	if err != nil {
		return 0, err
	}
	target, err := warehouse.ParseTableRef(cfg.Database.ProdDB)
	if err != nil {
		return 0, err
	}

	w.Logger.Info("Trying to create engine")
	session, err := w.Open(ctx, params, w.Logger)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			w.Logger.Error("Failed to close database session", "error", err)
		}
	}()

	query, err := template.ReadQueryFile(cfg.Files.QueryFile)
	if err != nil {
		return 0, err
	}

	rows, err := w.Executor.Execute(ctx, query, session, cfg.Database.MaxRetries)
	if err != nil {
		return 0, err
	}

	inserted, err := w.Upserter.Upsert(ctx, rows, staging, target, session)
	if err != nil {
		return 0, err
	}

	body := fmt.Sprintf("%d rows are inserted to %s on %s", inserted, cfg.Database.ProdDB, w.timeProvider.Now().Format("2006-01-02"))
	w.Logger.Info(body)
	w.Logger.Info("Process completed")
	notify.BestEffort(ctx, w.Notifier, w.Logger, notify.Message{
		Subject:    cfg.Emails.ToSubject,
		Body:       body,
		Attachment: cfg.Files.LogFile,
	})

	return inserted, nil
}

func warehouseKeys(cfg *config.Config) []string {
	keys := []string{
		"files.log_file",
		"files.query_file",
		"database.driver",
		"database.temp_db",
		"database.prod_db",
		"emails.email_to_subject",
		"emails.email_to_error_subject",
	}
	return append(keys, credentialKeys(cfg)...)
}

// credentialKeys lists the login keys the configured driver and auth mode
// need. Embedded databases take none.
func credentialKeys(cfg *config.Config) []string {
	driver, err := warehouse.ParseDriver(cfg.Database.Driver)
	if err != nil || driver == warehouse.DuckDB {
		return nil
	}
	keys := []string{"database.user_dsn"}
	if mode, _ := warehouse.ParseAuthMode(cfg.Database.Auth); mode == warehouse.AuthLDAP {
		return append(keys, "credentials.ldap_account", "credentials.ldap_pw")
	}
	return append(keys, "credentials.service_account", "credentials.service_pw")
}

func connectionParams(cfg *config.Config) (warehouse.Params, error) {
	driver, err := warehouse.ParseDriver(cfg.Database.Driver)
	if err != nil {
		return warehouse.Params{}, err
	}
	auth, err := warehouse.ParseAuthMode(cfg.Database.Auth)
	if err != nil {
		return warehouse.Params{}, err
	}

	account, secret := cfg.Credentials.ServiceAccount, cfg.Credentials.ServicePW
	if auth == warehouse.AuthLDAP {
		account, secret = cfg.Credentials.LDAPAccount, cfg.Credentials.LDAPPW
	}

	return warehouse.Params{
		Driver:         driver,
		Auth:           auth,
		Host:           cfg.Database.UserDSN,
		Port:           cfg.Database.Port,
		Database:       cfg.Database.Name,
		Account:        account,
		Secret:         secret,
		MaxIdleConns:   cfg.Database.MaxIdleConns,
		InitQueryFiles: cfg.Database.InitQueryFiles,
	}, nil
}
