package input

import (
	"context"

	"lingua-stream/internal/domain"
)

// ModelLibrary interface - Input port (use case)
// Defines what the application can do with on-device model files
type ModelLibrary interface {
	ListCatalog() []domain.ModelDescriptor
	Download(ctx context.Context, modelID string, onProgress func(domain.DownloadProgress)) error
	Delete(modelID string) error
	History(query domain.DownloadQuery) (*domain.DownloadList, error)
}
