package http

import "lingua-stream/internal/domain"

type (
	// ChatMessageRequest struct - one message of the history
	ChatMessageRequest struct {
		Role    string `json:"role" validate:"required,chat_role"`
		Content string `json:"content"`
	}

	// ChatRequest struct - HTTP request DTO for a conversation turn
	ChatRequest struct {
		ConversationID string               `json:"conversation_id" validate:"required,max=100"`
		Model          string               `json:"model" validate:"required,model_id"`
		Messages       []ChatMessageRequest `json:"messages" validate:"required,min=1,dive"`
		APIKey         string               `json:"api_key" validate:"omitempty"`
		APIURL         string               `json:"api_url" validate:"omitempty,url"`
		Stream         *bool                `json:"stream,omitempty"`
	}

	// ListModelsQuery struct - HTTP query DTO for the model listing
	ListModelsQuery struct {
		IncludeLocal *bool  `query:"include_local"`
		APIURL       string `query:"api_url" validate:"omitempty,url"`
	}

	// DownloadHistoryQuery struct - HTTP query DTO for the download ledger
	DownloadHistoryQuery struct {
		ModelID *string `query:"model_id" validate:"omitempty,max=100"`
		Status  *string `query:"status" validate:"omitempty,oneof=COMPLETED FAILED CANCELLED"`
		Limit   *int    `query:"limit" validate:"omitempty,gte=1,lte=100"`
		Page    *int    `query:"page" validate:"omitempty,gte=1"`
	}
)

// toDomain converts the request into a registry turn
func (r ChatRequest) toDomain() domain.ChatTurnRequest {
	messages := make([]domain.ChatMessage, len(r.Messages))
	for i, m := range r.Messages {
		messages[i] = domain.ChatMessage{Role: domain.ChatMessageRole(m.Role), Content: m.Content}
	}
	return domain.ChatTurnRequest{
		ConversationID: r.ConversationID,
		ModelID:        r.Model,
		Messages:       messages,
		Settings: domain.RemoteSettings{
			APIKey: r.APIKey,
			APIURL: r.APIURL,
		},
	}
}

// streaming reports whether the caller asked for server-sent events
func (r ChatRequest) streaming() bool {
	return r.Stream == nil || *r.Stream
}
