package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makkenzo/codename-symbiont/errors"
)

func TestNewUrlTaskTrimsWhitespace(t *testing.T) {
	task := NewUrlTask(" http://x.test ")
	assert.Equal(t, "http://x.test", task.URL)
	assert.NoError(t, task.Validate())
}

func TestUrlTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid url", "http://x.test", false},
		{"empty url", "", true},
		{"whitespace only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := UrlTask{URL: tt.url}.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateTextTaskValidate(t *testing.T) {
	prompt := "seed words"
	tests := []struct {
		name    string
		task    GenerateTextTask
		wantErr bool
	}{
		{"valid with prompt", GenerateTextTask{TaskID: "t1", Prompt: &prompt, MaxLength: 50}, false},
		{"valid without prompt", GenerateTextTask{TaskID: "t1", MaxLength: 1}, false},
		{"max length at upper bound", GenerateTextTask{TaskID: "t1", MaxLength: 1000}, false},
		{"max length zero", GenerateTextTask{TaskID: "t1", MaxLength: 0}, true},
		{"max length over bound", GenerateTextTask{TaskID: "t1", MaxLength: 1001}, true},
		{"empty task id", GenerateTextTask{TaskID: "", MaxLength: 10}, true},
		{"whitespace task id", GenerateTextTask{TaskID: "  ", MaxLength: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSearchRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     SearchRequest
		wantErr bool
	}{
		{"valid", SearchRequest{QueryText: "neural networks", TopK: 5}, false},
		{"empty query", SearchRequest{QueryText: "", TopK: 5}, true},
		{"zero top_k", SearchRequest{QueryText: "q", TopK: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewRawTextAssignsIdentity(t *testing.T) {
	a := NewRawText("http://x.test", "body")
	b := NewRawText("http://x.test", "body")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID, "ids must be globally unique")
	assert.NotZero(t, a.TimestampMs)
}

// One round trip per envelope that crosses a process boundary; decode must
// reproduce the encoded value exactly.
func TestEnvelopeRoundTrips(t *testing.T) {
	prompt := "once upon"
	payload := PointPayload{
		OriginalDocumentID: "doc-1",
		SourceURL:          "http://x.test",
		SentenceText:       "first sentence",
		SentenceOrder:      3,
		ModelName:          "sentence-transformers/paraphrase-multilingual-mpnet-base-v2",
		ProcessedAtMs:      1700000000000,
	}

	tests := []struct {
		name string
		in   any
		out  any
	}{
		{"url task", &UrlTask{URL: "http://x.test"}, &UrlTask{}},
		{
			"raw text",
			&RawText{ID: "id-1", SourceURL: "http://x.test", RawText: "body", TimestampMs: 1700000000000},
			&RawText{},
		},
		{
			"tokenized text",
			&TokenizedText{
				OriginalID:  "id-1",
				SourceURL:   "http://x.test",
				Tokens:      []string{"first", "sentence"},
				Sentences:   []string{"First sentence."},
				TimestampMs: 1700000000000,
			},
			&TokenizedText{},
		},
		{
			"generate text task",
			&GenerateTextTask{TaskID: "t1", Prompt: &prompt, MaxLength: 100},
			&GenerateTextTask{},
		},
		{
			"generated text",
			&GeneratedText{OriginalTaskID: "t1", GeneratedText: "words", TimestampMs: 1700000000000},
			&GeneratedText{},
		},
		{
			"text with embeddings",
			&TextWithEmbeddings{
				OriginalID: "id-1",
				SourceURL:  "http://x.test",
				EmbeddingsData: []SentenceEmbedding{
					{SentenceText: "first", Embedding: []float32{0.1, 0.2}},
				},
				ModelName:   "test-model",
				TimestampMs: 1700000000000,
			},
			&TextWithEmbeddings{},
		},
		{
			"query embedding pair",
			&QueryEmbeddingResult{RequestID: "r1", Embedding: []float32{0.5}, ModelName: "test-model"},
			&QueryEmbeddingResult{},
		},
		{
			"search task",
			&SearchTask{RequestID: "r1", QueryEmbedding: []float32{0.1, 0.2}, TopK: 5},
			&SearchTask{},
		},
		{
			"search result",
			&SearchResult{
				RequestID: "r1",
				Results:   []ResultItem{{PointID: "p1", Score: 0.93, Payload: payload}},
			},
			&SearchResult{},
		},
		{
			"search response",
			&SearchResponse{SearchRequestID: "s1", Results: []ResultItem{}, ErrorMessage: "boom"},
			&SearchResponse{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, tt.out))
			assert.Equal(t, tt.in, tt.out)
		})
	}
}

// Field names are the wire contract; a rename breaks every other process.
func TestWireFieldNames(t *testing.T) {
	data, err := json.Marshal(TextWithEmbeddings{
		OriginalID:     "id-1",
		EmbeddingsData: []SentenceEmbedding{{SentenceText: "s", Embedding: []float32{1}}},
		ModelName:      "m",
		TimestampMs:    5,
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"original_id", "source_url", "embeddings_data", "model_name", "timestamp_ms"} {
		assert.Contains(t, raw, key)
	}

	data, err = json.Marshal(ResultItem{PointID: "p", Payload: PointPayload{ProcessedAtMs: 1}})
	require.NoError(t, err)
	raw = nil
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "point_id")

	payload, ok := raw["payload"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"original_document_id", "sentence_order", "processed_at_ms"} {
		assert.Contains(t, payload, key)
	}
}

func TestReplyErrorFieldsOmittedWhenEmpty(t *testing.T) {
	data, err := json.Marshal(QueryEmbeddingResult{RequestID: "r1", Embedding: []float32{1}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "error_message")

	data, err = json.Marshal(SearchResult{RequestID: "r1", Results: []ResultItem{}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "error_message")
}
