package repo

import (
	"context"
	"errors"
	"sync"

	"github.com/LeventeLantos/sheet-messaging/internal/model"
)

var ErrInvalidLimit = errors.New("limit must be > 0")

type RunRepository interface {
	Save(ctx context.Context, r model.RunReport) error
	List(ctx context.Context, limit, offset int) ([]model.RunReport, error)
	Last(ctx context.Context) (model.RunReport, bool, error)
}

// MemoryRunRepo keeps the most recent run reports in a fixed-size ring.
// The spreadsheet stays the system of record; this only backs the status API.
type MemoryRunRepo struct {
	mu    sync.RWMutex
	buf   []model.RunReport
	next  int
	count int
}

func NewMemoryRunRepo(capacity int) *MemoryRunRepo {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryRunRepo{buf: make([]model.RunReport, capacity)}
}

func (r *MemoryRunRepo) Save(ctx context.Context, rep model.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = rep
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	return nil
}

// List returns reports newest first.
func (r *MemoryRunRepo) List(ctx context.Context, limit, offset int) ([]model.RunReport, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if offset < 0 {
		offset = 0
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.RunReport, 0, min(limit, r.count))
	for i := offset; i < r.count && len(out) < limit; i++ {
		idx := (r.next - 1 - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out, nil
}

func (r *MemoryRunRepo) Last(ctx context.Context) (model.RunReport, bool, error) {
	runs, err := r.List(ctx, 1, 0)
	if err != nil || len(runs) == 0 {
		return model.RunReport{}, false, err
	}
	return runs[0], true, nil
}
