package bridge

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEHandlerStreamsEvents(t *testing.T) {
	b := newTestBridge(t)
	srv := httptest.NewServer(b.SSEHandler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Let the handler register its subscriber before offering the event.
	time.Sleep(50 * time.Millisecond)
	b.offer(event("sse1"))

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			assert.Contains(t, line, `"type":"text_generated"`)
			assert.Contains(t, line, "sse1")
			return
		}
	}
}

func TestWSHandlerStreamsEvents(t *testing.T) {
	b := newTestBridge(t)
	srv := httptest.NewServer(b.WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	b.offer(event("ws1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev StreamEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventTypeGenerated, ev.Type)
	require.NotNil(t, ev.Event)
	assert.Equal(t, "ws1", ev.Event.OriginalTaskID)
}
