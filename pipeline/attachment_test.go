package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/opsdata/etl-scripts/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeReport lays out a report export: a title block of four rows, then
// the header and the tickets.
func writeReport(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"Ticket Report"},
		{"Generated 2024-03-05"},
		{"Filter: all teams"},
		{"Exported by the ticket service"},
		{"Ticket", "Status", "Owner"},
		{"T-1", "New", "kim"},
		{"T-2", "Closed", "lee"},
		{"T-3", "In Progress", nil},
		{"T-4", "Pending Acknowledgement", "kim"},
		{"T-5", "Cancelled", "ana"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func attachmentYAML(dir string) string {
	return fmt.Sprintf(`
files:
  log_file: %[1]s/run.log
  download_location: %[1]s
  download_file_name: report.xlsx
database:
  driver: duckdb
  user_dsn: %[1]s/etl.duckdb
attachment:
  table: main.open_tickets
emails:
  email_to_subject: IMPORT OK
  email_to_error_subject: ERROR OCCURRED
`, dir)
}

func TestAttachmentRun(t *testing.T) {
	dir := t.TempDir()
	writeReport(t, filepath.Join(dir, "report.xlsx"))
	notifier := &recordingNotifier{}
	a := NewAttachment(testConfig(t, attachmentYAML(dir)), testLogger(), notifier)

	// the table is replaced, so running twice leaves one copy
	for i := 0; i < 2; i++ {
		imported, err := a.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), imported)
	}

	assert.Equal(t, []string{
		"3 lines of data are imported to table 'main.open_tickets' from 'report.xlsx'",
		"3 lines of data are imported to table 'main.open_tickets' from 'report.xlsx'",
	}, notifier.bodies())
	assert.Equal(t, filepath.Join(dir, "run.log"), notifier.messages[0].Attachment)

	session, err := warehouse.Open(context.Background(), warehouse.Params{Driver: warehouse.DuckDB, Host: filepath.Join(dir, "etl.duckdb")}, testLogger())
	require.NoError(t, err)
	defer session.Close()
	tickets, err := session.Query(context.Background(), `SELECT "Ticket", "Status", "Owner" FROM main.open_tickets ORDER BY "Ticket"`)
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{"T-1", "New", "kim"},
		{"T-3", "In Progress", nil},
		{"T-4", "Pending Acknowledgement", "kim"},
	}, tickets.Rows())
}

func TestAttachmentRunMissingStatusColumn(t *testing.T) {
	dir := t.TempDir()
	writeReport(t, filepath.Join(dir, "report.xlsx"))
	cfg := testConfig(t, attachmentYAML(dir))
	cfg.Attachment.SkipRows = 0
	notifier := &recordingNotifier{}
	a := NewAttachment(cfg, testLogger(), notifier)
	a.Open = func(context.Context, warehouse.Params, *slog.Logger) (Session, error) {
		t.Fatal("session must not be opened for an invalid report")
		return nil, nil
	}

	_, err := a.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no 'Status' column")
	assert.Equal(t, []string{"Check log"}, notifier.bodies())
}

type fakeMailbox struct {
	subject string
	err     error
	prefix  string
	write   func(dest string)
}

func (m *fakeMailbox) SaveLatestAttachment(_ context.Context, subjectPrefix, ext, dest string) (string, error) {
	m.prefix = subjectPrefix
	if m.err != nil {
		return "", m.err
	}
	if ext != ".xlsx" {
		return "", fmt.Errorf("unexpected extension %s", ext)
	}
	m.write(dest)
	return m.subject, nil
}

func mailboxYAML(dir string) string {
	return fmt.Sprintf(`
files:
  log_file: %[1]s/run.log
  download_location: %[1]s/downloads
  download_file_name: report.xlsx
database:
  driver: duckdb
  user_dsn: %[1]s/etl.duckdb
attachment:
  table: main.open_tickets
settings:
  imap_host: imap.example.com
credentials:
  email_address: etl@example.com
  email_password: secret
emails:
  email_from_subject: Open tickets
  email_to_subject: IMPORT OK
  email_to_error_subject: ERROR OCCURRED
`, dir)
}

func TestAttachmentRunDownloadsFromMailbox(t *testing.T) {
	dir := t.TempDir()
	mailbox := &fakeMailbox{
		subject: "Open tickets 2024-03-05",
		write:   func(dest string) { writeReport(t, dest) },
	}
	notifier := &recordingNotifier{}
	a := NewAttachment(testConfig(t, mailboxYAML(dir)), testLogger(), notifier)
	require.NotNil(t, a.Mailbox)
	a.Mailbox = mailbox

	imported, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), imported)
	assert.Equal(t, "Open tickets", mailbox.prefix)
	assert.FileExists(t, filepath.Join(dir, "downloads", "report.xlsx"))
	assert.Equal(t, []string{
		"3 lines of data are imported to table 'main.open_tickets' from email 'Open tickets 2024-03-05'",
	}, notifier.bodies())
}

func TestAttachmentRunMailboxFailure(t *testing.T) {
	dir := t.TempDir()
	notifier := &recordingNotifier{}
	a := NewAttachment(testConfig(t, mailboxYAML(dir)), testLogger(), notifier)
	a.Mailbox = &fakeMailbox{err: errors.New("login rejected")}
	a.Open = func(context.Context, warehouse.Params, *slog.Logger) (Session, error) {
		t.Fatal("session must not be opened without a report")
		return nil, nil
	}

	_, err := a.Run(context.Background())

	assert.EqualError(t, err, "login rejected")
	assert.Equal(t, []string{"Check log"}, notifier.bodies())
}

func TestAttachmentMailboxRequiresCredentials(t *testing.T) {
	dir := t.TempDir()
	a := NewAttachment(testConfig(t, attachmentYAML(dir)+"settings:\n  imap_host: imap.example.com\n"), testLogger(), &recordingNotifier{})
	require.NotNil(t, a.Mailbox)

	_, err := a.Run(context.Background())

	require.Error(t, err)
	for _, key := range []string{"emails.email_from_subject", "credentials.email_address", "credentials.email_password"} {
		assert.Contains(t, err.Error(), key)
	}
}
