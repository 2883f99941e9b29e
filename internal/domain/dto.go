package domain

// DTOs (Data Transfer Objects) - Domain layer request/response structures

type (
	// DownloadQuery struct - filter for the download ledger
	DownloadQuery struct {
		ModelID *string
		Status  *DownloadStatus
		Limit   int
		Offset  int
	}

	// DownloadList struct - page of ledger records
	DownloadList struct {
		Records   []DownloadRecord
		TotalItem int64
	}

	// ChatTurnRequest struct - one conversation turn submitted to the registry
	ChatTurnRequest struct {
		ConversationID string
		ModelID        string
		Messages       []ChatMessage
		Settings       RemoteSettings
	}
)
