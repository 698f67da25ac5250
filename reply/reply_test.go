package reply

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	symerrors "github.com/makkenzo/codename-symbiont/errors"
	"github.com/makkenzo/codename-symbiont/natsclient"
)

type echoReq struct {
	Text string `json:"text"`
}

type echoResp struct {
	Text         string `json:"text"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (r echoResp) RemoteError() string { return r.ErrorMessage }

// respond wires a one-shot responder on subject.
func respond(t *testing.T, bus *natsclient.InProcBus, subject string, fn func(echoReq) any) {
	t.Helper()
	_, err := bus.Subscribe(context.Background(), subject, func(ctx context.Context, msg natsclient.Message) {
		var req echoReq
		require.NoError(t, json.Unmarshal(msg.Data, &req))
		data, err := json.Marshal(fn(req))
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, msg.Reply, data))
	})
	require.NoError(t, err)
}

func TestRequest_Success(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	respond(t, bus, "svc.echo", func(req echoReq) any {
		return echoResp{Text: req.Text + "!"}
	})

	resp, err := Request[echoReq, echoResp](context.Background(), bus, "svc.echo", echoReq{Text: "hi"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hi!", resp.Text)
}

func TestRequest_TimeoutWhenNoReply(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	start := time.Now()
	_, err := Request[echoReq, echoResp](context.Background(), bus, "svc.silent", echoReq{Text: "hi"}, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, symerrors.IsTimeout(err), "expected timeout kind, got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRequest_ReplyBeforeDeadlineAccepted(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	respond(t, bus, "svc.slow", func(req echoReq) any {
		time.Sleep(30 * time.Millisecond)
		return echoResp{Text: req.Text}
	})

	// Reply lands just inside the deadline and must be accepted.
	resp, err := Request[echoReq, echoResp](context.Background(), bus, "svc.slow", echoReq{Text: "late"}, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "late", resp.Text)
}

func TestRequest_ReplyAfterDeadlineDiscarded(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	replied := make(chan struct{})
	_, err := bus.Subscribe(context.Background(), "svc.tardy", func(ctx context.Context, msg natsclient.Message) {
		time.Sleep(150 * time.Millisecond)
		data, _ := json.Marshal(echoResp{Text: "too late"})
		_ = bus.Publish(ctx, msg.Reply, data)
		close(replied)
	})
	require.NoError(t, err)

	start := time.Now()
	resp, err := Request[echoReq, echoResp](context.Background(), bus, "svc.tardy", echoReq{Text: "hi"}, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, symerrors.IsTimeout(err), "expected timeout kind, got %v", err)
	assert.Less(t, time.Since(start), 150*time.Millisecond, "caller must not wait for the late reply")
	assert.Empty(t, resp.Text, "no value may surface after the deadline")

	// The late reply lands on an unsubscribed inbox and goes nowhere.
	select {
	case <-replied:
	case <-time.After(time.Second):
		t.Fatal("responder never replied")
	}
}

func TestRequest_TransportErrorOnClosedBus(t *testing.T) {
	bus := natsclient.NewInProcBus()
	bus.Close()

	_, err := Request[echoReq, echoResp](context.Background(), bus, "svc.echo", echoReq{}, time.Second)
	require.Error(t, err)
	assert.True(t, symerrors.IsTransport(err), "expected transport kind, got %v", err)
}

func TestRequest_UndecodableReply(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	_, err := bus.Subscribe(context.Background(), "svc.garbage", func(ctx context.Context, msg natsclient.Message) {
		_ = bus.Publish(ctx, msg.Reply, []byte("{not json"))
	})
	require.NoError(t, err)

	_, err = Request[echoReq, echoResp](context.Background(), bus, "svc.garbage", echoReq{}, time.Second)
	require.Error(t, err)
	assert.True(t, symerrors.IsDecode(err), "expected decode kind, got %v", err)
}

func TestRequest_RemoteErrorSurfacedVerbatim(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()
	respond(t, bus, "svc.failing", func(echoReq) any {
		return echoResp{ErrorMessage: "model unavailable"}
	})

	_, err := Request[echoReq, echoResp](context.Background(), bus, "svc.failing", echoReq{}, time.Second)
	require.Error(t, err)
	assert.True(t, symerrors.IsRemote(err), "expected remote kind, got %v", err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestRequest_UnencodableRequest(t *testing.T) {
	bus := natsclient.NewInProcBus()
	defer bus.Close()

	type bad struct {
		C chan int `json:"c"`
	}
	_, err := Request[bad, echoResp](context.Background(), bus, "svc.echo", bad{C: make(chan int)}, time.Second)
	require.Error(t, err)
	assert.True(t, symerrors.IsInvalid(err))
}
