// Package envelope defines the typed payloads exchanged on the bus.
//
// Every envelope is a flat, JSON-serializable record with no behavior beyond
// construction and validation. Envelopes that participate in a multi-hop or
// traceable flow carry a correlation id that is propagated unchanged end to
// end, and a producer timestamp in epoch milliseconds assigned once at
// creation and never mutated. Field names are the wire contract; consumers in
// other processes decode by these names.
package envelope

import (
	"strings"

	"github.com/google/uuid"

	"github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/pkg/timestamp"
)

// MaxGenerateLength bounds GenerateTextTask.MaxLength.
const MaxGenerateLength = 1000

// UrlTask requests ingestion of a single URL.
type UrlTask struct {
	URL string `json:"url"`
}

// NewUrlTask builds a UrlTask with the URL trimmed of surrounding whitespace.
func NewUrlTask(url string) UrlTask {
	return UrlTask{URL: strings.TrimSpace(url)}
}

// Validate rejects empty or whitespace-only URLs before any bus interaction.
func (t UrlTask) Validate() error {
	if strings.TrimSpace(t.URL) == "" {
		return errors.NewValidation("UrlTask", "url", "must not be empty")
	}
	return nil
}

// RawText carries the fetched content of one page.
type RawText struct {
	ID          string `json:"id"`
	SourceURL   string `json:"source_url"`
	RawText     string `json:"raw_text"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// NewRawText assigns a fresh globally unique id and the producer timestamp.
func NewRawText(sourceURL, text string) RawText {
	return RawText{
		ID:          uuid.NewString(),
		SourceURL:   sourceURL,
		RawText:     text,
		TimestampMs: timestamp.Now(),
	}
}

// TokenizedText is the sentence and token decomposition of one RawText.
// OriginalID equals the source RawText.ID.
type TokenizedText struct {
	OriginalID  string   `json:"original_id"`
	SourceURL   string   `json:"source_url"`
	Tokens      []string `json:"tokens"`
	Sentences   []string `json:"sentences"`
	TimestampMs int64    `json:"timestamp_ms"`
}

// GenerateTextTask requests text generation.
type GenerateTextTask struct {
	TaskID    string  `json:"task_id"`
	Prompt    *string `json:"prompt,omitempty"`
	MaxLength uint32  `json:"max_length"`
}

// Validate rejects empty task ids and out-of-range lengths.
func (t GenerateTextTask) Validate() error {
	if strings.TrimSpace(t.TaskID) == "" {
		return errors.NewValidation("GenerateTextTask", "task_id", "must not be empty")
	}
	if t.MaxLength < 1 || t.MaxLength > MaxGenerateLength {
		return errors.NewValidation("GenerateTextTask", "max_length", "must be between 1 and 1000")
	}
	return nil
}

// GeneratedText is the terminal event of one generation task.
// OriginalTaskID equals the GenerateTextTask.TaskID that produced it.
type GeneratedText struct {
	OriginalTaskID string `json:"original_task_id"`
	GeneratedText  string `json:"generated_text"`
	TimestampMs    int64  `json:"timestamp_ms"`
}

// SentenceEmbedding pairs one sentence with its vector. The embedding length
// equals the model dimension.
type SentenceEmbedding struct {
	SentenceText string    `json:"sentence_text"`
	Embedding    []float32 `json:"embedding"`
}

// TextWithEmbeddings carries all sentence embeddings for one document.
// Published only when EmbeddingsData is non-empty.
type TextWithEmbeddings struct {
	OriginalID     string              `json:"original_id"`
	SourceURL      string              `json:"source_url"`
	EmbeddingsData []SentenceEmbedding `json:"embeddings_data"`
	ModelName      string              `json:"model_name"`
	TimestampMs    int64               `json:"timestamp_ms"`
}

// QueryForEmbeddingTask asks the embedding service to vectorize query text.
type QueryForEmbeddingTask struct {
	RequestID   string `json:"request_id"`
	TextToEmbed string `json:"text_to_embed"`
}

// QueryEmbeddingResult is the reply to a QueryForEmbeddingTask. Exactly one
// of Embedding or ErrorMessage is set.
type QueryEmbeddingResult struct {
	RequestID    string    `json:"request_id"`
	Embedding    []float32 `json:"embedding,omitempty"`
	ModelName    string    `json:"model_name,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// RemoteError surfaces the reply's own error field to the correlator.
func (r QueryEmbeddingResult) RemoteError() string { return r.ErrorMessage }

// SearchTask asks the vector store for the top_k nearest points.
type SearchTask struct {
	RequestID      string    `json:"request_id"`
	QueryEmbedding []float32 `json:"query_embedding"`
	TopK           uint32    `json:"top_k"`
}

// Validate rejects non-positive top_k before any bus interaction.
func (t SearchTask) Validate() error {
	if t.TopK == 0 {
		return errors.NewValidation("SearchTask", "top_k", "must be positive")
	}
	return nil
}

// PointPayload carries denormalized provenance for one stored point.
type PointPayload struct {
	OriginalDocumentID string `json:"original_document_id"`
	SourceURL          string `json:"source_url"`
	SentenceText       string `json:"sentence_text"`
	SentenceOrder      uint32 `json:"sentence_order"`
	ModelName          string `json:"model_name"`
	ProcessedAtMs      int64  `json:"processed_at_ms"`
}

// ResultItem is one ranked vector-store point.
type ResultItem struct {
	PointID string       `json:"point_id"`
	Score   float32      `json:"score"`
	Payload PointPayload `json:"payload"`
}

// SearchResult is the reply to a SearchTask. Results are empty whenever
// ErrorMessage is set.
type SearchResult struct {
	RequestID    string       `json:"request_id"`
	Results      []ResultItem `json:"results"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// RemoteError surfaces the reply's own error field to the correlator.
func (r SearchResult) RemoteError() string { return r.ErrorMessage }

// SearchRequest is the externally supplied search input.
type SearchRequest struct {
	QueryText string `json:"query_text"`
	TopK      uint32 `json:"top_k"`
}

// Validate rejects empty query text and non-positive top_k.
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.QueryText) == "" {
		return errors.NewValidation("SearchRequest", "query_text", "must not be empty")
	}
	if r.TopK == 0 {
		return errors.NewValidation("SearchRequest", "top_k", "must be positive")
	}
	return nil
}

// SearchResponse is the externally returned search result. SearchRequestID is
// generated fresh for every external call.
type SearchResponse struct {
	SearchRequestID string       `json:"search_request_id"`
	Results         []ResultItem `json:"results"`
	ErrorMessage    string       `json:"error_message,omitempty"`
}
