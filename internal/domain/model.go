package domain

import (
	"path/filepath"
	"strings"
)

// LocalModelPrefix marks identifiers served by the on-device engine
const LocalModelPrefix = "local:"

// LocalModelID func - Returns the namespaced identifier of a catalog entry
func LocalModelID(id string) string {
	return LocalModelPrefix + id
}

// ParseModelID func - Splits a namespaced identifier into its bare id and
// whether it addresses the local backend
func ParseModelID(modelID string) (string, bool) {
	if strings.HasPrefix(modelID, LocalModelPrefix) {
		return strings.TrimPrefix(modelID, LocalModelPrefix), true
	}
	return modelID, false
}

// ModelDescriptor struct - one addressable model from either backend
type ModelDescriptor struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name"`
	SourceURL        string `json:"source_url,omitempty"`
	ExpectedByteSize int64  `json:"expected_byte_size,omitempty"`
	IsLocal          bool   `json:"is_local"`
	IsInstalled      bool   `json:"is_installed"`
	OwnedBy          string `json:"owned_by,omitempty"`
}

// CatalogEntry struct - an installable on-device model
type CatalogEntry struct {
	ID            string   `json:"id" yaml:"id" validate:"required,excludesall=/\\:"`
	DisplayName   string   `json:"display_name" yaml:"display_name" validate:"required"`
	SourceURL     string   `json:"source_url" yaml:"source_url" validate:"required,url"`
	FileName      string   `json:"file_name" yaml:"file_name" validate:"required"`
	ExpectedBytes int64    `json:"expected_bytes" yaml:"expected_bytes" validate:"gte=0"`
	ChatTemplate  string   `json:"chat_template" yaml:"chat_template" validate:"omitempty,oneof=chatml llama3 phi3 gemma mistral zephyr"`
	StopTokens    []string `json:"stop_tokens,omitempty" yaml:"stop_tokens"`
	ContextSize   int      `json:"context_size,omitempty" yaml:"context_size" validate:"gte=0"`
}

// HasSafeFileName reports whether FileName is a bare base name that cannot
// escape the models directory
func (e CatalogEntry) HasSafeFileName() bool {
	name := e.FileName
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}

// Descriptor converts a catalog entry into its namespaced descriptor
func (e CatalogEntry) Descriptor(installed bool) ModelDescriptor {
	return ModelDescriptor{
		ID:               LocalModelID(e.ID),
		DisplayName:      e.DisplayName,
		SourceURL:        e.SourceURL,
		ExpectedByteSize: e.ExpectedBytes,
		IsLocal:          true,
		IsInstalled:      installed,
	}
}

// DownloadProgress struct - emitted repeatedly while a model file downloads
type DownloadProgress struct {
	ModelID      string  `json:"model_id"`
	BytesWritten int64   `json:"bytes_written"`
	TotalBytes   int64   `json:"total_bytes"`
	Fraction     float64 `json:"fraction"`
}

// NewDownloadProgress func - Fraction is 0 when the total is unknown
func NewDownloadProgress(modelID string, written, total int64) DownloadProgress {
	p := DownloadProgress{
		ModelID:      modelID,
		BytesWritten: written,
		TotalBytes:   total,
	}
	if total > 0 {
		p.Fraction = float64(written) / float64(total)
		if p.Fraction > 1 {
			p.Fraction = 1
		}
	}
	return p
}
