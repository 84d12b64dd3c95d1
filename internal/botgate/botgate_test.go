package botgate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestGate(t *testing.T) (*Gate, *httptest.Server) {
	t.Helper()

	gate := New("127.0.0.1:0", zap.NewNop().Sugar())
	server := httptest.NewServer(gate.server.Handler)
	t.Cleanup(server.Close)
	return gate, server
}

func TestPing(t *testing.T) {
	_, server := newTestGate(t)

	resp, err := http.Get(server.URL + "/ping")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /ping returned status %d, want 200", resp.StatusCode)
	}
}

func TestResponseLandsOnChannel(t *testing.T) {
	gate, server := newTestGate(t)

	resp, err := http.Post(server.URL+"/bot/response", "application/json",
		strings.NewReader(`{"channelID":"101","content":"beep boop"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /bot/response returned status %d, want 202", resp.StatusCode)
	}

	select {
	case got := <-gate.Responses():
		if got.ChannelID != 101 || got.Content != "beep boop" {
			t.Errorf("Received response %+v, want channel 101 with beep boop", got)
		}
	default:
		t.Fatal("No response arrived on the channel")
	}
}

func TestBadPayloadsAreRejected(t *testing.T) {
	gate, server := newTestGate(t)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "Error: Not JSON",
			body: "definitely not json",
		},
		{
			name: "Error: Missing channel ID",
			body: `{"content":"hi"}`,
		},
		{
			name: "Error: Empty content",
			body: `{"channelID":"101","content":"  "}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/bot/response", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("POST returned status %d, want 400", resp.StatusCode)
			}
		})
	}

	select {
	case got := <-gate.Responses():
		t.Errorf("Rejected payload still produced response %+v", got)
	default:
	}
}

func TestOverflowIsDropped(t *testing.T) {
	gate, server := newTestGate(t)

	for range queueSize {
		resp, err := http.Post(server.URL+"/bot/response", "application/json",
			strings.NewReader(`{"channelID":"101","content":"fill"}`))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("Fill request returned status %d, want 202", resp.StatusCode)
		}
	}

	resp, err := http.Post(server.URL+"/bot/response", "application/json",
		strings.NewReader(`{"channelID":"101","content":"overflow"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Overflow request returned status %d, want 429", resp.StatusCode)
	}

	// the queued responses are intact, the overflow one is gone
	for i := range queueSize {
		select {
		case got := <-gate.Responses():
			if got.Content != "fill" {
				t.Fatalf("Queued response %d has content %q, want fill", i, got.Content)
			}
		default:
			t.Fatalf("Queue held %d responses, want %d", i, queueSize)
		}
	}
	select {
	case got := <-gate.Responses():
		t.Errorf("Overflow response %+v was queued anyway", got)
	default:
	}
}
