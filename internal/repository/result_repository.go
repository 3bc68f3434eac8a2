package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhejian/url-shortener/qrform/internal/model"
)

var (
	ErrNotFound     = errors.New("result not found")
	ErrCodeConflict = errors.New("code already stored")
)

var tracer = otel.Tracer("qrform/repository")

const resultColumns = `id, session_id, code, short_url, kind, title, guest, expires_at, max_scans, created_at`

// ResultRepository handles database operations for created QR results
type ResultRepository struct {
	db *pgxpool.Pool
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

func startSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "qr_results"),
	}
	return tracer.Start(ctx, name, trace.WithAttributes(append(base, attrs...)...))
}

// Create inserts a result. A duplicate code maps to ErrCodeConflict.
func (r *ResultRepository) Create(ctx context.Context, res *model.Result) error {
	ctx, span := startSpan(ctx, "db.insert", "INSERT", attribute.String("code", res.Code))
	defer span.End()

	query := `
		INSERT INTO qr_results (id, session_id, code, short_url, kind, title, guest, expires_at, max_scans)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		res.ID,
		res.SessionID,
		res.Code,
		res.ShortURL,
		res.Kind,
		res.Title,
		res.Guest,
		res.ExpiresAt,
		res.MaxScans,
	).Scan(&res.CreatedAt)
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCodeConflict
		}
		return err
	}
	return nil
}

// GetByCode retrieves a result by its code
func (r *ResultRepository) GetByCode(ctx context.Context, code string) (*model.Result, error) {
	ctx, span := startSpan(ctx, "db.select", "SELECT", attribute.String("code", code))
	defer span.End()

	query := `SELECT ` + resultColumns + ` FROM qr_results WHERE code = $1`
	res, err := scanResult(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	return res, nil
}

// ListBySession returns the newest results of a browser session
func (r *ResultRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*model.Result, error) {
	ctx, span := startSpan(ctx, "db.select", "SELECT", attribute.Int("limit", limit))
	defer span.End()

	query := `SELECT ` + resultColumns + `
		FROM qr_results
		WHERE session_id = $1
		ORDER BY created_at DESC, code
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	results := make([]*model.Result, 0, limit)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return results, nil
}

// Delete removes a result by its code
func (r *ResultRepository) Delete(ctx context.Context, code string) error {
	ctx, span := startSpan(ctx, "db.delete", "DELETE", attribute.String("code", code))
	defer span.End()

	result, err := r.db.Exec(ctx, `DELETE FROM qr_results WHERE code = $1`, code)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanResult(row pgx.Row) (*model.Result, error) {
	var res model.Result
	err := row.Scan(
		&res.ID,
		&res.SessionID,
		&res.Code,
		&res.ShortURL,
		&res.Kind,
		&res.Title,
		&res.Guest,
		&res.ExpiresAt,
		&res.MaxScans,
		&res.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
