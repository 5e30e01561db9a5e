package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/token-authority/internal/domain"
	"github.com/spec-kit/token-authority/internal/repository"
)

// FakeTokenLedger is an in-memory TokenLedger for tests. It mirrors the
// Postgres implementation's contract: soft deletes flag rows and return the
// flagged token strings, search orders by insertion recency descending.
type FakeTokenLedger struct {
	mu      sync.Mutex
	nextID  int64
	records []*domain.TokenRecord

	// LastLimit / LastOffset record the pagination the ledger received.
	LastLimit  int
	LastOffset int
}

// NewFakeTokenLedger builds an empty fake ledger.
func NewFakeTokenLedger() *FakeTokenLedger {
	return &FakeTokenLedger{nextID: 1}
}

func (f *FakeTokenLedger) Insert(_ context.Context, record *domain.TokenRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := *record
	stored.ID = f.nextID
	stored.CreatedAt = time.Now()
	f.nextID++
	f.records = append(f.records, &stored)

	record.ID = stored.ID
	record.CreatedAt = stored.CreatedAt
	return nil
}

func (f *FakeTokenLedger) GetByToken(_ context.Context, token string) (*domain.TokenRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].Token == token {
			copied := *f.records[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *FakeTokenLedger) SoftDeleteByToken(_ context.Context, token, createdBy string) ([]string, error) {
	revoked := f.flag(func(r *domain.TokenRecord) bool {
		return r.Token == token && r.CreatedBy == createdBy
	})
	if len(revoked) == 0 {
		return nil, pgx.ErrNoRows
	}
	return revoked, nil
}

func (f *FakeTokenLedger) SoftDeleteByService(_ context.Context, service, createdBy string) ([]string, error) {
	return f.flag(func(r *domain.TokenRecord) bool {
		return r.Service == service && r.CreatedBy == createdBy
	}), nil
}

func (f *FakeTokenLedger) SoftDeleteByCreator(_ context.Context, createdBy string) ([]string, error) {
	return f.flag(func(r *domain.TokenRecord) bool {
		return r.CreatedBy == createdBy
	}), nil
}

func (f *FakeTokenLedger) flag(match func(*domain.TokenRecord) bool) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var revoked []string
	now := time.Now()
	for _, r := range f.records {
		if r.Deleted || !match(r) {
			continue
		}
		r.Deleted = true
		r.DeletedAt = &now
		revoked = append(revoked, r.Token)
	}
	return revoked
}

func (f *FakeTokenLedger) Search(_ context.Context, filter repository.SearchFilter) ([]domain.TokenRecord, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	f.LastLimit = limit
	f.LastOffset = offset

	var matched []domain.TokenRecord
	for i := len(f.records) - 1; i >= 0; i-- {
		r := f.records[i]
		if r.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.Service != nil && r.Service != *filter.Service {
			continue
		}
		matched = append(matched, *r)
	}

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}
