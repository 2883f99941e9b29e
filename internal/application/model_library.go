package application

import (
	"context"
	"errors"
	"time"

	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/input"
	"lingua-stream/internal/ports/output"
	"lingua-stream/pkg/metrics"

	"github.com/sirupsen/logrus"
)

var _ input.ModelLibrary = (*ModelLibrary)(nil)

// ModelLibrary struct - Application service managing downloadable model files
type ModelLibrary struct {
	store   output.ModelStore
	session input.InferenceSession
	ledger  output.DownloadRepository
	metrics *metrics.Metrics
}

// NewModelLibrary func - Creates new model library
func NewModelLibrary(store output.ModelStore, session input.InferenceSession, ledger output.DownloadRepository) *ModelLibrary {
	return &ModelLibrary{
		store:   store,
		session: session,
		ledger:  ledger,
	}
}

// SetMetrics attaches collectors
func (l *ModelLibrary) SetMetrics(m *metrics.Metrics) {
	l.metrics = m
}

// ListCatalog func - Use case: list installable models with their install state
func (l *ModelLibrary) ListCatalog() []domain.ModelDescriptor {
	catalog := l.store.ListCatalog()
	models := make([]domain.ModelDescriptor, 0, len(catalog))
	for _, entry := range catalog {
		models = append(models, entry.Descriptor(l.store.IsInstalled(entry.ID)))
	}
	return models
}

// Download func - Use case: fetch a model file and record the outcome
func (l *ModelLibrary) Download(ctx context.Context, modelID string, onProgress func(domain.DownloadProgress)) error {
	id, _ := domain.ParseModelID(modelID)
	entry, err := l.store.Lookup(id)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	var last domain.DownloadProgress
	err = l.store.Download(ctx, id, func(p domain.DownloadProgress) {
		last = p
		if onProgress != nil {
			onProgress(p)
		}
	})
	if errors.Is(err, domain.ErrDownloadInProgress) {
		return err
	}

	record := domain.DownloadRecord{
		ModelID:      entry.ID,
		Status:       domain.DownloadStatusCompleted,
		BytesWritten: last.BytesWritten,
		TotalBytes:   last.TotalBytes,
		StartedAt:    startedAt,
		FinishedAt:   time.Now(),
	}
	if record.TotalBytes == 0 {
		record.TotalBytes = entry.ExpectedBytes
	}
	outcome := metrics.OutcomeCompleted
	switch {
	case err == nil:
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		record.Status = domain.DownloadStatusCancelled
		record.Error = err.Error()
		outcome = metrics.OutcomeCancelled
	default:
		record.Status = domain.DownloadStatusFailed
		record.Error = err.Error()
		outcome = metrics.OutcomeFailed
	}
	l.metrics.DownloadFinished(outcome, record.BytesWritten)

	if recErr := l.ledger.CreateDownload(&record); recErr != nil {
		logrus.Errorf("Failed to record download of %s: %v", entry.ID, recErr)
	}
	if err != nil {
		logrus.Errorf("Download of %s ended %s: %v", entry.ID, outcome, err)
		return err
	}
	logrus.Infof("Downloaded %s (%d bytes)", entry.ID, record.BytesWritten)
	return nil
}

// Delete func - Use case: remove a model file that is not loaded
func (l *ModelLibrary) Delete(modelID string) error {
	id, _ := domain.ParseModelID(modelID)
	if l.session != nil && l.session.IsLoaded(id) {
		return domain.ErrModelInUse
	}
	return l.store.Delete(id)
}

// History func - Use case: page through recorded downloads
func (l *ModelLibrary) History(query domain.DownloadQuery) (*domain.DownloadList, error) {
	result, err := l.ledger.ListDownloads(query)
	if err != nil {
		logrus.Errorln(err)
		return nil, err
	}
	return result, nil
}
