// Package reply implements the request side of request/reply over the bus:
// publish with an ephemeral reply subject, await exactly one reply within a
// deadline, and surface four distinguishable outcomes: timeout, transport
// failure, undecodable reply, or an error the remote service reported in its
// own envelope. Nothing here retries; retry policy belongs to the caller.
package reply

import (
	"context"
	"encoding/json"
	"time"

	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/natsclient"
)

// RemoteReporter is implemented by reply envelopes that carry their own
// error field. A non-empty value means the remote service processed the
// request and explicitly failed, distinct from any transport-level outcome.
type RemoteReporter interface {
	RemoteError() string
}

// Request publishes req on subject and awaits one decoded reply within
// timeout. The returned error's Kind identifies the outcome:
// KindTimeout (deadline elapsed, reply abandoned), KindTransport (bus
// failure), KindDecode (reply payload did not parse), or KindRemote (the
// reply's own error field was set, surfaced verbatim).
func Request[Req, Resp any](
	ctx context.Context,
	bus natsclient.Bus,
	subject string,
	req Req,
	timeout time.Duration,
) (Resp, error) {
	var zero Resp

	data, err := json.Marshal(req)
	if err != nil {
		return zero, symerrors.WrapInvalid(err, "reply", "Request", "encode request for "+subject)
	}

	raw, err := bus.Request(ctx, subject, data, timeout)
	if err != nil {
		// The bus already distinguishes timeout from transport failure.
		return zero, err
	}

	var resp Resp
	if err := json.Unmarshal(raw, &resp); err != nil {
		return zero, symerrors.WrapKind(symerrors.KindDecode, err, "reply", "Request", "decode reply from "+subject)
	}

	if reporter, ok := any(resp).(RemoteReporter); ok {
		if msg := reporter.RemoteError(); msg != "" {
			return zero, symerrors.NewRemote(subject, msg)
		}
	}

	return resp, nil
}
