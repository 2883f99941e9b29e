package output

import "lingua-stream/internal/domain"

// DownloadRepository interface - Output port
// Defines what the application needs for persisting download outcomes
type DownloadRepository interface {
	CreateDownload(record *domain.DownloadRecord) error
	ListDownloads(query domain.DownloadQuery) (*domain.DownloadList, error)
}
