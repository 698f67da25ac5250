// Package symbiont is a pipeline of independent worker services that
// communicate exclusively over a subject-addressed pub/sub bus (NATS core).
//
// # Architecture
//
// Every service subscribes to one or more subjects and publishes its results
// to the next subject in the flow. Delivery is at-most-once; a worker that is
// down while an event passes simply misses it.
//
//	submit_url → tasks.perceive.url → perception
//	    perception → data.raw_text.discovered → preprocess
//	    preprocess → data.processed_text.tokenized → textgen, knowledgegraph
//	    preprocess → data.text.with_embeddings → vectormemory
//	generate_text → tasks.generation.text → textgen → events.text.generated
//	search → tasks.embedding.for_query ⇄ preprocess (request/reply)
//	       → tasks.search.semantic.request ⇄ vectormemory (request/reply)
//
// The gateway is the only HTTP surface: it accepts task submissions, runs
// the two-hop search workflow, and streams generation events over SSE and
// WebSocket.
//
// # Packages
//
//   - envelope: typed bus payloads and subject constants
//   - natsclient: bus connection, in-process test bus
//   - dispatch: typed subscribe-decode-handle loops
//   - reply: typed request/reply correlation
//   - orchestrator: two-hop search workflow
//   - bridge: event ring with SSE and WebSocket fan-out
//   - gateway: HTTP boundary
//   - worker/...: the pipeline services
//   - pkg/...: embedding, extraction, markov, and storage building blocks
//
// One binary hosts any subset of services, selected with -services; see
// cmd/symbiont.
package symbiont
