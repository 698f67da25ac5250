package envelope

import "time"

// Bus subjects. These names are the wire contract between processes and must
// stay stable across releases.
const (
	// SubjectPerceiveURL carries UrlTask, fire-and-forget.
	SubjectPerceiveURL = "tasks.perceive.url"

	// SubjectRawText carries RawText, fire-and-forget.
	SubjectRawText = "data.raw_text.discovered"

	// SubjectTokenizedText carries TokenizedText, fire-and-forget.
	SubjectTokenizedText = "data.processed_text.tokenized"

	// SubjectTextWithEmbeddings carries TextWithEmbeddings, fire-and-forget.
	SubjectTextWithEmbeddings = "data.text.with_embeddings"

	// SubjectGenerateText carries GenerateTextTask, fire-and-forget.
	SubjectGenerateText = "tasks.generation.text"

	// SubjectTextGenerated carries GeneratedText; terminal event, also
	// tapped by the stream bridge.
	SubjectTextGenerated = "events.text.generated"

	// SubjectQueryEmbedding carries QueryForEmbeddingTask and replies with
	// QueryEmbeddingResult.
	SubjectQueryEmbedding = "tasks.embedding.for_query"

	// SubjectSemanticSearch carries SearchTask and replies with SearchResult.
	SubjectSemanticSearch = "tasks.search.semantic.request"
)

// Default request/reply deadlines. The two hops have independent budgets;
// they are configurable per process and never share an outer timeout.
const (
	DefaultEmbedTimeout  = 15 * time.Second
	DefaultSearchTimeout = 20 * time.Second
)
