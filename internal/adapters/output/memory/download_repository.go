package memory

import (
	"sync"
	"time"

	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/output"

	"github.com/google/uuid"
)

// Compile-time check to ensure DownloadRepository implements the output port
var _ output.DownloadRepository = (*DownloadRepository)(nil)

// DownloadRepository struct - Output adapter keeping the download ledger in
// memory, used when no database is configured
type DownloadRepository struct {
	mu      sync.RWMutex
	records []domain.DownloadRecord
}

// NewDownloadRepository func
func NewDownloadRepository() *DownloadRepository {
	return &DownloadRepository{}
}

// CreateDownload func
func (r *DownloadRepository) CreateDownload(record *domain.DownloadRecord) error {
	if record.ID == nil {
		id := uuid.New()
		record.ID = &id
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

// ListDownloads returns matching records, newest first
func (r *DownloadRepository) ListDownloads(query domain.DownloadQuery) (*domain.DownloadList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []domain.DownloadRecord{}
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if query.ModelID != nil && rec.ModelID != *query.ModelID {
			continue
		}
		if query.Status != nil && rec.Status != *query.Status {
			continue
		}
		matched = append(matched, rec)
	}

	result := &domain.DownloadList{TotalItem: int64(len(matched))}
	start := query.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if query.Limit > 0 && start+query.Limit < end {
		end = start + query.Limit
	}
	result.Records = matched[start:end]
	return result, nil
}
