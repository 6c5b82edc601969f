package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool the audit logger needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Audit actions.
const (
	AuditActionExport      = "ledger.export"
	AuditActionPDFDownload = "ledger.pdf_download"
)

// ExportAudit represents a record stored in ledger_export_audit.
type ExportAudit struct {
	ID          uuid.UUID
	Action      string
	WorkspaceID string
	DivisionID  string
	CustomerID  string
	Format      string
	Period      string
	Rows        int
	Filename    string
	Meta        map[string]any
	At          time.Time
}

// AuditLogger writes export events into ledger_export_audit. A nil logger or
// one without a database records nothing.
type AuditLogger struct {
	db  Execer
	now func() time.Time
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db, now: time.Now}
}

// Enabled reports whether events are persisted.
func (l *AuditLogger) Enabled() bool {
	return l != nil && l.db != nil
}

// Record persists the event and returns its id.
func (l *AuditLogger) Record(ctx context.Context, event ExportAudit) (uuid.UUID, error) {
	if event.Action == "" || event.CustomerID == "" || event.Format == "" {
		return uuid.Nil, ErrAuditInvalid
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if !l.Enabled() {
		return event.ID, nil
	}
	if event.At.IsZero() {
		event.At = l.now().UTC()
	}
	metaJSON, err := json.Marshal(event.Meta)
	if err != nil {
		return uuid.Nil, err
	}
	_, err = l.db.Exec(ctx, `INSERT INTO ledger_export_audit (id, action, workspace_id, division_id, customer_id, format, period, row_count, filename, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.ID, event.Action, event.WorkspaceID, event.DivisionID, event.CustomerID, event.Format, event.Period, event.Rows, event.Filename, metaJSON, event.At)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return event.ID, ErrAuditDuplicate
		}
		return uuid.Nil, err
	}
	return event.ID, nil
}
