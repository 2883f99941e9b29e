package openaicompat

import (
	"encoding/json"
	"fmt"
	"strings"

	"lingua-stream/internal/domain"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// streamChunk is what one event-stream line contributes to a completion
type streamChunk struct {
	Content      string
	FinishReason string
	Model        string
	Err          error
}

// sseDecoder turns arbitrary body fragments into complete lines and parses
// them. The trailing partial line of a fragment is kept until its newline
// arrives, so chunk boundaries never reach the JSON parser.
type sseDecoder struct {
	pending      string
	malformed    int
	maxMalformed int
	onMalformed  func()
}

func newSSEDecoder(maxMalformed int, onMalformed func()) *sseDecoder {
	return &sseDecoder{maxMalformed: maxMalformed, onMalformed: onMalformed}
}

// Feed consumes one fragment. handle returns false to stop decoding; Feed
// then returns false as well. A non-nil error means the stream is unusable.
func (d *sseDecoder) Feed(fragment string, handle func(chunk *streamChunk, done bool) bool) (bool, error) {
	d.pending += fragment
	for {
		i := strings.IndexByte(d.pending, '\n')
		if i < 0 {
			return true, nil
		}
		line := strings.TrimRight(d.pending[:i], "\r")
		d.pending = d.pending[i+1:]
		cont, err := d.line(line, handle)
		if err != nil || !cont {
			return cont, err
		}
	}
}

// Flush processes a final line that arrived without a newline
func (d *sseDecoder) Flush(handle func(chunk *streamChunk, done bool) bool) (bool, error) {
	line := strings.TrimRight(d.pending, "\r")
	d.pending = ""
	return d.line(line, handle)
}

func (d *sseDecoder) line(line string, handle func(chunk *streamChunk, done bool) bool) (bool, error) {
	if strings.TrimSpace(line) == "" {
		return true, nil
	}
	chunk, done, err := parseSSELine(line)
	if err != nil {
		d.malformed++
		logrus.Warnf("Error parsing SSE line: %v, line: %s", err, line)
		if d.onMalformed != nil {
			d.onMalformed()
		}
		if d.maxMalformed > 0 && d.malformed > d.maxMalformed {
			return false, domain.NewCompletionError(domain.KindMalformedResponse, 0,
				fmt.Sprintf("%d consecutive unparsable event lines", d.malformed), err)
		}
		return true, nil
	}
	d.malformed = 0
	if chunk == nil && !done {
		return true, nil
	}
	return handle(chunk, done), nil
}

// parseSSELine parses a single SSE line
// Returns (chunk, done, error) where:
//   - chunk: the parsed chunk (nil if the line carries nothing for the caller)
//   - done: true if this is the [DONE] marker
//   - error: parsing error (non-fatal, caller should continue)
func parseSSELine(line string) (*streamChunk, bool, error) {
	// event:, id:, retry: and comment lines carry no data
	if !strings.HasPrefix(line, "data:") {
		return nil, false, nil
	}
	data := strings.TrimPrefix(line, "data:")
	data = strings.TrimPrefix(data, " ")

	if strings.TrimSpace(data) == "[DONE]" {
		return nil, true, nil
	}

	var event streamEventAPI
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, false, fmt.Errorf("failed to parse SSE JSON: %w", err)
	}

	if hasErrorPayload(event.Error) {
		return &streamChunk{Err: errorFromPayload(event.Error, 0)}, false, nil
	}

	if len(event.Choices) == 0 {
		return nil, false, nil
	}

	choice := event.Choices[0]
	if choice.Delta.Content == "" && choice.FinishReason == "" {
		// role-only or empty keep-alive delta
		return nil, false, nil
	}
	return &streamChunk{
		Content:      choice.Delta.Content,
		FinishReason: string(choice.FinishReason),
		Model:        event.Model,
	}, false, nil
}

func hasErrorPayload(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}

// decodeAPIError accepts the OpenAI error object as well as a bare string
func decodeAPIError(raw json.RawMessage) *openai.APIError {
	var apiErr openai.APIError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
		return &apiErr
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return &openai.APIError{Message: msg}
	}
	return &openai.APIError{Message: strings.TrimSpace(string(raw))}
}

// errorFromPayload maps a provider error object onto the error taxonomy
func errorFromPayload(raw json.RawMessage, statusCode int) error {
	apiErr := decodeAPIError(raw)
	kind := domain.KindServerError
	if statusCode != 0 {
		kind = kindForStatus(statusCode)
	}
	marker := strings.ToLower(apiErr.Type + " " + fmt.Sprint(apiErr.Code))
	switch {
	case strings.Contains(marker, "rate_limit"):
		kind = domain.KindRateLimited
	case strings.Contains(marker, "invalid_api_key"), strings.Contains(marker, "authentication"):
		kind = domain.KindUnauthorized
	}
	return domain.NewCompletionError(kind, statusCode, apiErr.Message, nil)
}

// streamEventAPI represents a single SSE chunk from streaming chat completions
type streamEventAPI struct {
	ID      string                              `json:"id"`
	Model   string                              `json:"model"`
	Choices []openai.ChatCompletionStreamChoice `json:"choices"`
	Error   json.RawMessage                     `json:"error,omitempty"`
}
