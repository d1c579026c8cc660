package memory

import (
	"context"
	"sync"

	"github.com/mallkit/storefront/internal/domain/audit"
)

// AuditLog is an append-only in-memory recorder.
type AuditLog struct {
	mu      sync.Mutex
	records []audit.Record
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (l *AuditLog) Record(ctx context.Context, rec audit.Record) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *AuditLog) append(rec audit.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

// Records returns a copy of everything recorded so far.
func (l *AuditLog) Records() []audit.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]audit.Record(nil), l.records...)
}
