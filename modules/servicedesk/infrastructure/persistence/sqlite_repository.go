package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/pkg/livequery"
)

// SQLite stores instants as fixed-width UTC text so they sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteColumns = `id, customer_id, customer_name, customer_email, device_category, brand,
	os_version_or_vendor, issue_description, error_messages,
	requested_appointment_date, status, cost, invoice_notes, submitted_at, updated_at`

const (
	sqliteInsertQuery = `INSERT INTO service_requests (` + sqliteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, '', ?, ?)`

	sqliteSelectByIDQuery = `SELECT ` + sqliteColumns + ` FROM service_requests WHERE id = ?`

	sqliteListAllQuery = `SELECT ` + sqliteColumns + ` FROM service_requests ORDER BY submitted_at DESC, id`

	sqliteListCustomerQuery = `SELECT ` + sqliteColumns + ` FROM service_requests
		WHERE customer_id = ? ORDER BY submitted_at DESC, id`

	sqliteUpdateStatusQuery = `UPDATE service_requests SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	sqliteCompleteQuery = `UPDATE service_requests SET
		status = 'Completed',
		invoice_notes = CASE WHEN cost IS NULL THEN ? ELSE invoice_notes END,
		cost = COALESCE(cost, ?),
		updated_at = ?
	WHERE id = ? AND status = ?`
)

// OpenSQLite opens a database file with a busy timeout and WAL journaling.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, gerrors.Wrap(err, "open sqlite")
	}
	// One writer at a time; readers share the same connection.
	db.SetMaxOpenConns(1)
	return db, nil
}

type SQLiteRepository struct {
	db   *sql.DB
	feed *livequery.Feed
	now  func() time.Time
}

func NewSQLiteRepository(db *sql.DB, feed *livequery.Feed, now func() time.Time) *SQLiteRepository {
	if now == nil {
		now = time.Now
	}
	return &SQLiteRepository{db: db, feed: feed, now: now}
}

func (r *SQLiteRepository) publish(id uuid.UUID) {
	if r.feed != nil {
		r.feed.Publish(livequery.Change{Collection: request.Collection, ID: id.String()})
	}
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func mapSQLiteError(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return request.ErrNotFound
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return gerrors.Wrap(request.ErrConflict, op)
	}
	return gerrors.Wrap(err, op)
}

func (r *SQLiteRepository) Create(ctx context.Context, entity request.Request) (request.Request, error) {
	stored := entity.Stamp(r.now())
	var appointment sql.NullString
	if d, ok := stored.AppointmentDate(); ok {
		appointment = sql.NullString{String: d.Format(request.DateLayout), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, sqliteInsertQuery,
		stored.ID().String(),
		stored.CustomerID(),
		stored.CustomerName(),
		stored.CustomerEmail(),
		string(stored.Category()),
		stored.Brand(),
		stored.OSVersionOrVendor(),
		stored.IssueDescription(),
		stored.ErrorMessages(),
		appointment,
		string(stored.Status()),
		formatSQLiteTime(stored.SubmittedAt()),
		formatSQLiteTime(stored.UpdatedAt()),
	)
	if err != nil {
		return nil, mapSQLiteError(err, "insert service request")
	}
	r.publish(stored.ID())
	return r.GetByID(ctx, stored.ID())
}

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) getByID(ctx context.Context, q sqliteQuerier, id uuid.UUID) (request.Request, error) {
	entity, err := scanSQLiteRequest(q.QueryRowContext(ctx, sqliteSelectByIDQuery, id.String()))
	if err != nil {
		return nil, mapSQLiteError(err, "get service request")
	}
	return entity, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id uuid.UUID) (request.Request, error) {
	return r.getByID(ctx, r.db, id)
}

func (r *SQLiteRepository) List(ctx context.Context, q request.Query) ([]request.Request, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if q.Scope == request.ScopeCustomer {
		rows, err = r.db.QueryContext(ctx, sqliteListCustomerQuery, q.CustomerID)
	} else {
		rows, err = r.db.QueryContext(ctx, sqliteListAllQuery)
	}
	if err != nil {
		return nil, mapSQLiteError(err, "list service requests")
	}
	defer rows.Close()

	var out []request.Request
	for rows.Next() {
		entity, err := scanSQLiteRequest(rows)
		if err != nil {
			return nil, mapSQLiteError(err, "scan service request")
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err, "list service requests")
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to request.Status) (request.Request, error) {
	return r.swap(ctx, id, "update service request status", sqliteUpdateStatusQuery,
		string(to), formatSQLiteTime(r.now()), id.String(), string(from))
}

func (r *SQLiteRepository) Complete(ctx context.Context, id uuid.UUID, from request.Status, cost decimal.Decimal, notes string) (request.Request, error) {
	return r.swap(ctx, id, "complete service request", sqliteCompleteQuery,
		notes, cost.StringFixed(2), formatSQLiteTime(r.now()), id.String(), string(from))
}

func (r *SQLiteRepository) swap(ctx context.Context, id uuid.UUID, op, query string, args ...any) (request.Request, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, gerrors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(err, op)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, gerrors.Wrap(err, op)
	}
	if affected == 0 {
		if _, err := r.getByID(ctx, tx, id); err != nil {
			return nil, err
		}
		return nil, request.ErrConflict
	}
	updated, err := r.getByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, gerrors.Wrap(err, "commit")
	}
	r.publish(id)
	return updated, nil
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRequest(row sqliteScanner) (request.Request, error) {
	var (
		out                    requestRow
		id                     string
		appointment            sql.NullString
		submittedAt, updatedAt string
	)
	if err := row.Scan(
		&id, &out.CustomerID, &out.CustomerName, &out.CustomerEmail, &out.Category, &out.Brand,
		&out.OSVersionOrVendor, &out.IssueDescription, &out.ErrorMessages,
		&appointment, &out.Status, &out.Cost, &out.InvoiceNotes, &submittedAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, gerrors.Wrapf(err, "stored id %q", id)
	}
	out.ID = parsed
	if appointment.Valid {
		d, err := time.Parse(request.DateLayout, appointment.String)
		if err != nil {
			return nil, gerrors.Wrapf(err, "stored appointment date of %s", id)
		}
		out.AppointmentDate = &d
	}
	if out.SubmittedAt, err = time.Parse(sqliteTimeLayout, submittedAt); err != nil {
		return nil, gerrors.Wrapf(err, "stored submitted_at of %s", id)
	}
	if out.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, gerrors.Wrapf(err, "stored updated_at of %s", id)
	}
	return toDomainRequest(out)
}
