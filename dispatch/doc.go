// Package dispatch implements the worker dispatch loop shared by every
// consuming process: subscribe to one subject, decode each inbound payload
// into its envelope type, and run an isolated concurrent handler per message.
//
// Failure isolation is the contract. A payload that fails to decode is
// logged, counted, and dropped; a handler that returns an error or panics
// affects only its own message. The subscription never sees backpressure
// from slow handlers. Loops are generic over the envelope type:
//
//	loop := dispatch.New("perception", envelope.SubjectPerceiveURL, bus,
//	    func(ctx context.Context, task envelope.UrlTask) error {
//	        return handle(ctx, task)
//	    },
//	    dispatch.WithLogger[envelope.UrlTask](logger),
//	)
//	loop.Start(ctx)
//	defer loop.Stop(5 * time.Second)
//
// Subjects served in the request/reply pattern use NewWithReply, whose
// handler also receives the message's ephemeral reply subject.
package dispatch
