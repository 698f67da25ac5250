// Package natsclient provides the shared bus client used by every Symbiont
// process, wrapping the standard NATS Go client with circuit breaker
// protection, automatic reconnection, and context propagation.
//
// The package exposes the Bus interface as the process-wide messaging
// contract: Publish for fire-and-forget messages, Subscribe for continuous
// subject consumption, and Request for request/reply exchanges over an
// ephemeral reply inbox. A single Client instance is constructed at startup
// and passed to every component that needs the bus; it is safe for
// concurrent use from many handlers at once.
//
// # Delivery Contract
//
// Delivery is at-most-once, unordered, and best-effort. There is no
// redelivery, no acknowledgment, and no persistence. Causal ordering holds
// only within one request/reply pair, guaranteed by the exclusive reply
// inbox bound per call.
//
// # Circuit Breaker
//
// Consecutive transport failures (default threshold: 5) open the circuit,
// failing calls fast while the breaker backs off exponentially before
// testing the connection again. Request deadlines do not feed the breaker;
// an elapsed deadline is remote slowness, not a connection failure.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("symbiont-gateway"),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	reply, err := client.Request(ctx, "tasks.embedding.for_query", payload, 15*time.Second)
//
// # Testing
//
// InProcBus implements the same Bus interface fully in memory, letting
// dispatch loops, correlators, and orchestrators be tested without a NATS
// server.
package natsclient
