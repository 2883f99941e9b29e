package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lingua-stream/configs"
	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/output"
	"lingua-stream/pkg/validator"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Compile-time check to ensure Store implements ModelStore interface
var _ output.ModelStore = (*Store)(nil)

const (
	// DefaultSizeTolerance is the accepted relative deviation from the catalog size
	DefaultSizeTolerance = 0.10
	// DefaultProgressInterval throttles progress callbacks during a download
	DefaultProgressInterval = 250 * time.Millisecond

	partialMarker = ".part-"
	copyChunkSize = 256 * 1024
)

// Store struct - Output adapter keeping model files in one private directory
type Store struct {
	dir              string
	catalog          []domain.CatalogEntry
	byID             map[string]domain.CatalogEntry
	httpClient       *http.Client
	tolerance        float64
	progressInterval time.Duration

	mu          sync.Mutex
	downloading map[string]struct{}
	inUse       func(modelID string) bool
}

// NewStore func - Creates the models directory and loads the catalog
func NewStore(cfg configs.Local, httpClient *http.Client) (*Store, error) {
	catalog, err := LoadCatalog(cfg.CatalogFile, validator.New())
	if err != nil {
		return nil, err
	}
	return NewStoreWithCatalog(cfg, catalog, httpClient)
}

// NewStoreWithCatalog func - Creates a store serving the given entries
func NewStoreWithCatalog(cfg configs.Local, catalog []domain.CatalogEntry, httpClient *http.Client) (*Store, error) {
	if cfg.ModelsDir == "" {
		return nil, errors.New("models directory is not configured")
	}
	if err := os.MkdirAll(cfg.ModelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	s := &Store{
		dir:              cfg.ModelsDir,
		catalog:          catalog,
		byID:             make(map[string]domain.CatalogEntry, len(catalog)),
		httpClient:       httpClient,
		tolerance:        cfg.SizeTolerance,
		progressInterval: time.Duration(cfg.ProgressIntervalMs) * time.Millisecond,
		downloading:      make(map[string]struct{}),
	}
	if s.tolerance <= 0 {
		s.tolerance = DefaultSizeTolerance
	}
	if cfg.ProgressIntervalMs == 0 {
		s.progressInterval = DefaultProgressInterval
	}
	for _, entry := range catalog {
		if !entry.HasSafeFileName() {
			return nil, fmt.Errorf("catalog entry %q has unsafe file name %q", entry.ID, entry.FileName)
		}
		s.byID[entry.ID] = entry
	}
	s.removeStalePartials()

	logrus.Infof("Model store ready at %s with %d catalog entries", s.dir, len(catalog))
	return s, nil
}

// SetInUseFunc registers the check consulted before deleting a model
func (s *Store) SetInUseFunc(fn func(modelID string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inUse = fn
}

// ListCatalog func
func (s *Store) ListCatalog() []domain.CatalogEntry {
	out := make([]domain.CatalogEntry, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// ListInstalled func
func (s *Store) ListInstalled() []domain.ModelDescriptor {
	var installed []domain.ModelDescriptor
	for _, entry := range s.catalog {
		if s.IsInstalled(entry.ID) {
			installed = append(installed, entry.Descriptor(true))
		}
	}
	return installed
}

// Lookup accepts a bare or a local: prefixed id
func (s *Store) Lookup(modelID string) (domain.CatalogEntry, error) {
	id, _ := domain.ParseModelID(modelID)
	entry, ok := s.byID[id]
	if !ok {
		return domain.CatalogEntry{}, fmt.Errorf("%w: %s", domain.ErrUnknownModel, modelID)
	}
	return entry, nil
}

// ResolvePath func
func (s *Store) ResolvePath(modelID string) (string, error) {
	entry, err := s.Lookup(modelID)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, entry.FileName), nil
}

// IsInstalled func
func (s *Store) IsInstalled(modelID string) bool {
	size, err := s.fileSize(modelID)
	return err == nil && size > 0
}

// Verify func - A file outside the size tolerance counts as a truncated or
// corrupt download
func (s *Store) Verify(modelID string) error {
	entry, err := s.Lookup(modelID)
	if err != nil {
		return err
	}
	size, err := s.fileSize(modelID)
	if err != nil || size == 0 {
		return fmt.Errorf("%w: %s", domain.ErrModelNotInstalled, entry.ID)
	}
	if entry.ExpectedBytes <= 0 {
		return nil
	}
	expected := float64(entry.ExpectedBytes)
	if float64(size) < expected*(1-s.tolerance) || float64(size) > expected*(1+s.tolerance) {
		return fmt.Errorf("%w: %s has %d bytes, expected about %d", domain.ErrModelIncomplete, entry.ID, size, entry.ExpectedBytes)
	}
	return nil
}

func (s *Store) fileSize(modelID string) (int64, error) {
	path, err := s.ResolvePath(modelID)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", path)
	}
	return info.Size(), nil
}

// Delete func
func (s *Store) Delete(modelID string) error {
	entry, err := s.Lookup(modelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	inUse := s.inUse
	_, downloading := s.downloading[entry.ID]
	s.mu.Unlock()
	if downloading {
		return fmt.Errorf("%w: %s", domain.ErrDownloadInProgress, entry.ID)
	}
	if inUse != nil && inUse(entry.ID) {
		return fmt.Errorf("%w: %s", domain.ErrModelInUse, entry.ID)
	}

	path := filepath.Join(s.dir, entry.FileName)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrModelNotInstalled, entry.ID)
		}
		return fmt.Errorf("failed to delete model file: %w", err)
	}
	logrus.Infof("Deleted model %s (%s)", entry.ID, path)
	return nil
}

// Download fetches the model into a temporary file and renames it into
// place only after the body has been fully written and synced
func (s *Store) Download(ctx context.Context, modelID string, onProgress func(domain.DownloadProgress)) error {
	entry, err := s.Lookup(modelID)
	if err != nil {
		return err
	}
	if !s.acquire(entry.ID) {
		return fmt.Errorf("%w: %s", domain.ErrDownloadInProgress, entry.ID)
	}
	defer s.release(entry.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model %s: %w", entry.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to download model %s: status %d", entry.ID, resp.StatusCode)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = entry.ExpectedBytes
	}

	target := filepath.Join(s.dir, entry.FileName)
	partial := target + partialMarker + uuid.NewString()
	written, err := s.writePartial(partial, resp.Body, entry.ID, total, onProgress)
	if err != nil {
		if rmErr := os.Remove(partial); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logrus.Warnf("Failed to remove partial download %s: %v", partial, rmErr)
		}
		return fmt.Errorf("failed to download model %s: %w", entry.ID, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(partial)
		return fmt.Errorf("failed to download model %s: %w (%d of %d bytes)", entry.ID, io.ErrUnexpectedEOF, written, resp.ContentLength)
	}
	if err := os.Rename(partial, target); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to install model %s: %w", entry.ID, err)
	}

	logrus.Infof("Downloaded model %s (%d bytes) to %s", entry.ID, written, target)
	return nil
}

func (s *Store) writePartial(path string, body io.Reader, modelID string, total int64, onProgress func(domain.DownloadProgress)) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}

	limit := rate.Inf
	if s.progressInterval > 0 {
		limit = rate.Every(s.progressInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	var written, reported int64
	report := func() {
		if onProgress != nil && written > reported {
			reported = written
			onProgress(domain.NewDownloadProgress(modelID, written, total))
		}
	}

	buf := make([]byte, copyChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				f.Close()
				return written, err
			}
			written += int64(n)
			if limiter.Allow() {
				report()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			return written, readErr
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return written, err
	}
	if err := f.Close(); err != nil {
		return written, err
	}
	report()
	return written, nil
}

func (s *Store) acquire(modelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.downloading[modelID]; busy {
		return false
	}
	s.downloading[modelID] = struct{}{}
	return true
}

func (s *Store) release(modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.downloading, modelID)
}

// removeStalePartials deletes temporary files left by an interrupted process
func (s *Store) removeStalePartials() {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+partialMarker+"*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			logrus.Warnf("Failed to remove stale partial download %s: %v", path, err)
			continue
		}
		logrus.Infof("Removed stale partial download %s", path)
	}
}
