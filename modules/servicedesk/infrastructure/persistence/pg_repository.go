package persistence

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/pkg/composables"
	"github.com/iota-uz/servicedesk/pkg/livequery"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying ids of written records.
const NotifyChannel = "servicedesk_requests"

const pgColumns = `id, customer_id, customer_name, customer_email, device_category, brand,
	os_version_or_vendor, issue_description, error_messages,
	requested_appointment_date, status, cost::text, invoice_notes, submitted_at, updated_at`

const (
	pgInsertQuery = `INSERT INTO service_requests (
		id, customer_id, customer_name, customer_email, device_category, brand,
		os_version_or_vendor, issue_description, error_messages,
		requested_appointment_date, status, submitted_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
	RETURNING ` + pgColumns

	pgSelectByIDQuery = `SELECT ` + pgColumns + ` FROM service_requests WHERE id = $1`

	pgListAllQuery = `SELECT ` + pgColumns + ` FROM service_requests ORDER BY submitted_at DESC, id`

	pgListCustomerQuery = `SELECT ` + pgColumns + ` FROM service_requests
		WHERE customer_id = $1 ORDER BY submitted_at DESC, id`

	pgUpdateStatusQuery = `UPDATE service_requests SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + pgColumns

	pgCompleteQuery = `UPDATE service_requests SET
		status = 'Completed',
		invoice_notes = CASE WHEN cost IS NULL THEN $4 ELSE invoice_notes END,
		cost = COALESCE(cost, $3::numeric),
		updated_at = now()
	WHERE id = $1 AND status = $2
	RETURNING ` + pgColumns

	pgNotifyQuery = `SELECT pg_notify($1, $2)`
)

type PgRepository struct {
	pool   *pgxpool.Pool
	feed   *livequery.Feed
	logger logrus.FieldLogger
}

// NewPgRepository stores records in PostgreSQL. Writes run inside the
// transaction carried by ctx when there is one. Changes reach the feed through
// Listen.
func NewPgRepository(pool *pgxpool.Pool, feed *livequery.Feed, logger logrus.FieldLogger) *PgRepository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PgRepository{pool: pool, feed: feed, logger: logger}
}

func (r *PgRepository) conn(ctx context.Context) (composables.Tx, error) {
	if tx, err := composables.UseTx(ctx); err == nil {
		return tx, nil
	}
	if r.pool == nil {
		return nil, composables.ErrNoPool
	}
	return r.pool, nil
}

func mapPgError(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return request.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501":
			return gerrors.Wrap(request.ErrPermissionDenied, op)
		case "23505":
			return gerrors.Wrap(request.ErrConflict, op)
		}
	}
	return gerrors.Wrap(err, op)
}

func (r *PgRepository) Create(ctx context.Context, entity request.Request) (request.Request, error) {
	var created request.Request
	err := composables.InTx(ctx, r.pool, func(txCtx context.Context) error {
		tx, err := r.conn(txCtx)
		if err != nil {
			return err
		}
		var appointment pgtype.Date
		if d, ok := entity.AppointmentDate(); ok {
			appointment = pgtype.Date{Time: d, Valid: true}
		}
		row := tx.QueryRow(txCtx, pgInsertQuery,
			entity.ID(),
			entity.CustomerID(),
			entity.CustomerName(),
			entity.CustomerEmail(),
			string(entity.Category()),
			entity.Brand(),
			entity.OSVersionOrVendor(),
			entity.IssueDescription(),
			entity.ErrorMessages(),
			appointment,
			string(entity.Status()),
		)
		created, err = scanPgRequest(row)
		if err != nil {
			return mapPgError(err, "insert service request")
		}
		return notify(txCtx, tx, created.ID())
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (request.Request, error) {
	tx, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	entity, err := scanPgRequest(tx.QueryRow(ctx, pgSelectByIDQuery, id))
	if err != nil {
		return nil, mapPgError(err, "get service request")
	}
	return entity, nil
}

func (r *PgRepository) List(ctx context.Context, q request.Query) ([]request.Request, error) {
	tx, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows pgx.Rows
	if q.Scope == request.ScopeCustomer {
		rows, err = tx.Query(ctx, pgListCustomerQuery, q.CustomerID)
	} else {
		rows, err = tx.Query(ctx, pgListAllQuery)
	}
	if err != nil {
		return nil, mapPgError(err, "list service requests")
	}
	defer rows.Close()

	var out []request.Request
	for rows.Next() {
		entity, err := scanPgRequest(rows)
		if err != nil {
			return nil, mapPgError(err, "scan service request")
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err, "list service requests")
	}
	return out, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to request.Status) (request.Request, error) {
	return r.swap(ctx, id, "update service request status", pgUpdateStatusQuery, id, string(from), string(to))
}

func (r *PgRepository) Complete(ctx context.Context, id uuid.UUID, from request.Status, cost decimal.Decimal, notes string) (request.Request, error) {
	return r.swap(ctx, id, "complete service request", pgCompleteQuery, id, string(from), cost.String(), notes)
}

// swap runs a conditional update. When no row matched it tells a missing
// record from a stale expected status.
func (r *PgRepository) swap(ctx context.Context, id uuid.UUID, op, query string, args ...any) (request.Request, error) {
	var updated request.Request
	err := composables.InTx(ctx, r.pool, func(txCtx context.Context) error {
		tx, err := r.conn(txCtx)
		if err != nil {
			return err
		}
		updated, err = scanPgRequest(tx.QueryRow(txCtx, query, args...))
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(txCtx, id); getErr != nil {
				return getErr
			}
			return request.ErrConflict
		}
		if err != nil {
			return mapPgError(err, op)
		}
		return notify(txCtx, tx, id)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func notify(ctx context.Context, tx composables.Tx, id uuid.UUID) error {
	if _, err := tx.Exec(ctx, pgNotifyQuery, NotifyChannel, id.String()); err != nil {
		return mapPgError(err, "notify service request change")
	}
	return nil
}

// Listen forwards NOTIFY payloads to the feed until ctx is done. A lost
// connection is re-established with backoff.
func (r *PgRepository) Listen(ctx context.Context) error {
	if r.pool == nil {
		return composables.ErrNoPool
	}
	backoff := 250 * time.Millisecond
	for {
		err := r.listenOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		r.logger.WithError(err).Warn("service request listener disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func (r *PgRepository) listenOnce(ctx context.Context) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return gerrors.Wrap(err, "acquire listener connection")
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return gerrors.Wrap(err, "listen")
	}
	// Anything written while disconnected is picked up by a collection-wide
	// refresh.
	r.publish(livequery.Change{Collection: request.Collection})
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return gerrors.Wrap(err, "wait for notification")
		}
		r.publish(livequery.Change{Collection: request.Collection, ID: n.Payload})
	}
}

func (r *PgRepository) publish(c livequery.Change) {
	if r.feed != nil {
		r.feed.Publish(c)
	}
}

func scanPgRequest(row pgx.Row) (request.Request, error) {
	var (
		out         requestRow
		appointment pgtype.Date
		cost        pgtype.Text
	)
	if err := row.Scan(
		&out.ID, &out.CustomerID, &out.CustomerName, &out.CustomerEmail, &out.Category, &out.Brand,
		&out.OSVersionOrVendor, &out.IssueDescription, &out.ErrorMessages,
		&appointment, &out.Status, &cost, &out.InvoiceNotes, &out.SubmittedAt, &out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if appointment.Valid {
		out.AppointmentDate = &appointment.Time
	}
	out.Cost.String, out.Cost.Valid = cost.String, cost.Valid
	return toDomainRequest(out)
}
