package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/token-authority/internal/domain"
)

// SearchFilter captures token search parameters. CreatedBy is mandatory;
// Service narrows the scan when set.
type SearchFilter struct {
	CreatedBy string
	Service   *string
	Limit     int
	Offset    int
}

// TokenLedger encapsulates persistence of issued tokens. Deletes are soft:
// rows are flagged, never removed. Every soft delete returns the token strings
// it flagged so callers can propagate revocations to the cache.
type TokenLedger interface {
	Insert(ctx context.Context, record *domain.TokenRecord) error
	GetByToken(ctx context.Context, token string) (*domain.TokenRecord, error)
	SoftDeleteByToken(ctx context.Context, token, createdBy string) ([]string, error)
	SoftDeleteByService(ctx context.Context, service, createdBy string) ([]string, error)
	SoftDeleteByCreator(ctx context.Context, createdBy string) ([]string, error)
	Search(ctx context.Context, filter SearchFilter) ([]domain.TokenRecord, int64, error)
}

type tokenLedger struct {
	pool *pgxpool.Pool
}

// NewTokenLedger instantiates the Postgres-backed ledger.
func NewTokenLedger(pool *pgxpool.Pool) TokenLedger {
	return &tokenLedger{pool: pool}
}

func (r *tokenLedger) Insert(ctx context.Context, record *domain.TokenRecord) error {
	const query = `
        INSERT INTO tokens (token, identity, service, expires_in, created_by, deleted, deleted_at)
        VALUES ($1,$2,$3,$4,$5,FALSE,NULL)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		record.Token,
		record.Identity,
		record.Service,
		record.ExpiresIn,
		record.CreatedBy,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *tokenLedger) GetByToken(ctx context.Context, token string) (*domain.TokenRecord, error) {
	const query = `
        SELECT id, token, identity, service, expires_in, created_by, deleted, deleted_at, created_at
        FROM tokens WHERE token=$1
        ORDER BY id DESC LIMIT 1`
	var record domain.TokenRecord
	if err := r.pool.QueryRow(ctx, query, token).Scan(
		&record.ID,
		&record.Token,
		&record.Identity,
		&record.Service,
		&record.ExpiresIn,
		&record.CreatedBy,
		&record.Deleted,
		&record.DeletedAt,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

// SoftDeleteByToken flags the caller's rows for an exact token. Zero matches
// is pgx.ErrNoRows: revoking someone else's token and revoking a missing one
// are indistinguishable to the caller.
func (r *tokenLedger) SoftDeleteByToken(ctx context.Context, token, createdBy string) ([]string, error) {
	const query = `
        UPDATE tokens SET deleted = TRUE, deleted_at = NOW()
        WHERE token = $1 AND created_by = $2 AND deleted = FALSE
        RETURNING token`
	revoked, err := r.softDelete(ctx, query, token, createdBy)
	if err != nil {
		return nil, err
	}
	if len(revoked) == 0 {
		return nil, pgx.ErrNoRows
	}
	return revoked, nil
}

// SoftDeleteByService flags all the caller's rows for a service. Zero matches
// is not an error.
func (r *tokenLedger) SoftDeleteByService(ctx context.Context, service, createdBy string) ([]string, error) {
	const query = `
        UPDATE tokens SET deleted = TRUE, deleted_at = NOW()
        WHERE service = $1 AND created_by = $2 AND deleted = FALSE
        RETURNING token`
	return r.softDelete(ctx, query, service, createdBy)
}

// SoftDeleteByCreator flags every row the caller ever created. Zero matches is
// not an error.
func (r *tokenLedger) SoftDeleteByCreator(ctx context.Context, createdBy string) ([]string, error) {
	const query = `
        UPDATE tokens SET deleted = TRUE, deleted_at = NOW()
        WHERE created_by = $1 AND deleted = FALSE
        RETURNING token`
	return r.softDelete(ctx, query, createdBy)
}

func (r *tokenLedger) softDelete(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revoked []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		revoked = append(revoked, token)
	}
	return revoked, rows.Err()
}

// Search returns one page of the caller's records, most recent first, plus the
// full filtered count.
func (r *tokenLedger) Search(ctx context.Context, filter SearchFilter) ([]domain.TokenRecord, int64, error) {
	where := `created_by = $1`
	args := []any{filter.CreatedBy}
	if filter.Service != nil {
		args = append(args, *filter.Service)
		where += ` AND service = $2`
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tokens WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
        SELECT id, token, identity, service, expires_in, created_by, deleted, deleted_at, created_at
        FROM tokens WHERE %s
        ORDER BY id DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func scanRecords(rows pgx.Rows) ([]domain.TokenRecord, error) {
	var result []domain.TokenRecord
	for rows.Next() {
		var record domain.TokenRecord
		if err := rows.Scan(
			&record.ID,
			&record.Token,
			&record.Identity,
			&record.Service,
			&record.ExpiresIn,
			&record.CreatedBy,
			&record.Deleted,
			&record.DeletedAt,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
