package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dbehnke/convcode/pkg/logger"
	"github.com/gorilla/websocket"
)

func TestNewProgressHub(t *testing.T) {
	hub := NewProgressHub(logger.New(logger.Config{Level: "info"}))
	if hub == nil {
		t.Fatal("NewProgressHub returned nil")
	}
}

func TestProgressHubBroadcastWithNoClientsDoesNotPanic(t *testing.T) {
	hub := NewProgressHub(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go hub.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	hub.Broadcast(ProgressEvent{Column: 1, TotalColumns: 10, BestState: 2, CumulativeMetric: 3})
	time.Sleep(20 * time.Millisecond)
}

func TestProgressHubDeliversEventToConnectedClient(t *testing.T) {
	hub := NewProgressHub(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go hub.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// Give the hub's register channel time to process the new client
	// before broadcasting, matching the register-then-broadcast ordering
	// the hub's event loop requires.
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for client registration")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(ProgressEvent{Column: 4, TotalColumns: 10, BestState: 1, CumulativeMetric: 7})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var got ProgressEvent
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Column != 4 || got.TotalColumns != 10 || got.BestState != 1 || got.CumulativeMetric != 7 {
		t.Errorf("got %+v, want Column=4 TotalColumns=10 BestState=1 CumulativeMetric=7", got)
	}
}

func TestProgressEventMarshal(t *testing.T) {
	event := ProgressEvent{
		Timestamp:        time.Now(),
		Column:           5,
		TotalColumns:     20,
		BestState:        3,
		CumulativeMetric: 12,
	}
	data, err := event.marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(data) == 0 {
		t.Error("marshaled data is empty")
	}
	if !strings.Contains(string(data), `"column":5`) {
		t.Errorf("marshaled data missing column field: %s", data)
	}
}
