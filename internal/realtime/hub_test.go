package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/correspondence-backend/internal/platform/logger"
)

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	channel := "req-" + uuid.NewString()

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventAssistantStatus, Data: map[string]any{"stage": "thinking"}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventAssistantMessage, Data: map[string]any{"content": "hi"}})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventAssistantStatus {
		t.Fatalf("first event=%s", got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventAssistantMessage {
		t.Fatalf("second event=%s", got.Event)
	}

	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("outbound should be closed after disconnect")
	}
	if hub.Subscribers(channel) != 0 {
		t.Fatalf("closed client still subscribed")
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Emit(context.Background(), SSEMessage{Channel: channel, Event: SSEEventAssistantDone})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventAssistantDone {
		t.Fatalf("reconnect event=%s", got.Event)
	}
}

func TestSSEHubIgnoresOtherChannelsAndFullBuffers(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, "mine")

	hub.Broadcast(SSEMessage{Channel: "theirs", Event: SSEEventAssistantStatus})
	hub.Broadcast(SSEMessage{Event: SSEEventAssistantStatus})
	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected message %+v", msg)
	default:
	}

	for i := 0; i < cap(client.Outbound)+5; i++ {
		hub.Broadcast(SSEMessage{Channel: "mine", Event: SSEEventAssistantStatus})
	}
	if len(client.Outbound) != cap(client.Outbound) {
		t.Fatalf("buffer=%d", len(client.Outbound))
	}
}

func TestSSEHubServeHTTPWritesEvents(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, "c1")
	hub.Broadcast(SSEMessage{Channel: "c1", Event: SSEEventAssistantStatus, Data: map[string]any{"stage": "composing"}})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/sse/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req, client)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: AssistantStatus\n") || !strings.Contains(body, `"stage":"composing"`) {
		t.Fatalf("body=%q", body)
	}
}
