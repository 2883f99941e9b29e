package output

import (
	"context"

	"lingua-stream/internal/domain"
)

// ModelStore interface - Output port
// Owns the on-disk lifecycle of downloadable model files. Deletion and
// rewrites of model files go through it only.
type ModelStore interface {
	// ListCatalog returns every installable model.
	ListCatalog() []domain.CatalogEntry

	// ListInstalled returns descriptors of the models present on disk.
	ListInstalled() []domain.ModelDescriptor

	// Lookup returns the catalog entry for a bare model id.
	Lookup(modelID string) (domain.CatalogEntry, error)

	// IsInstalled reports whether the model file exists and is non-empty.
	IsInstalled(modelID string) bool

	// Verify checks the file size against the catalog's expected size.
	Verify(modelID string) error

	// ResolvePath returns the file location derived from the catalog.
	ResolvePath(modelID string) (string, error)

	// Download fetches the model file, reporting monotonic progress.
	Download(ctx context.Context, modelID string, onProgress func(domain.DownloadProgress)) error

	// Delete removes the model file. It fails with domain.ErrModelInUse
	// while the model is loaded.
	Delete(modelID string) error
}
