package api

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"

    "vaxalloc/internal/model"
)

func dialWS(t *testing.T, s *Server) (*websocket.Conn, func()) {
    t.Helper()
    srv := httptest.NewServer(http.HandlerFunc(s.WSHandler))
    u := "ws" + strings.TrimPrefix(srv.URL, "http")
    c, _, err := websocket.DefaultDialer.Dial(u, nil)
    if err != nil { srv.Close(); t.Fatalf("dial: %v", err) }
    return c, func() { _ = c.Close(); srv.Close() }
}

func readUntil(t *testing.T, c *websocket.Conn, typ string, deadline time.Duration) wsMessage {
    t.Helper()
    _ = c.SetReadDeadline(time.Now().Add(deadline))
    for {
        var m wsMessage
        if err := c.ReadJSON(&m); err != nil {
            t.Fatalf("waiting for %q: %v", typ, err)
        }
        if m.Type == typ { return m }
    }
}

func TestWSSubscribeStreamsRunEvents(t *testing.T) {
    s := newTestServer(t)
    run, err := s.Store.CreateRun(context.Background(), model.OptimizationRun{TenantID: "t_demo", Status: model.RunRunning})
    if err != nil { t.Fatalf("create run: %v", err) }

    c, cleanup := dialWS(t, s)
    defer cleanup()

    if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil { t.Fatalf("init: %v", err) }
    readUntil(t, c, "connection_ack", time.Second)

    pl, _ := json.Marshal(map[string]string{"runId": run.ID})
    if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil { t.Fatalf("subscribe: %v", err) }

    // Hammer the connection from two directions at once: broker events feed
    // the forwarder goroutine while pings make the read loop write pongs.
    done := make(chan struct{})
    go func() {
        defer close(done)
        for i := 0; i < 50; i++ {
            s.Broker.Publish(run.ID, SSEEvent{Type: "search.progress", Data: map[string]any{"done": i, "total": 50}})
            time.Sleep(2 * time.Millisecond)
        }
    }()
    for i := 0; i < 5; i++ {
        if err := c.WriteJSON(wsMessage{Type: "ping"}); err != nil { t.Fatalf("ping: %v", err) }
    }
    <-done

    next := readUntil(t, c, "next", 2*time.Second)
    if next.ID != "1" { t.Fatalf("next on wrong subscription: %+v", next) }
    var payload struct {
        Type string         `json:"type"`
        Data map[string]any `json:"data"`
    }
    if err := json.Unmarshal(next.Payload, &payload); err != nil { t.Fatalf("decode next: %v", err) }
    if payload.Type != "search.progress" { t.Fatalf("unexpected event: %+v", payload) }
    if err := c.WriteJSON(wsMessage{Type: "ping"}); err != nil { t.Fatalf("ping: %v", err) }
    readUntil(t, c, "pong", 2*time.Second)

    // complete tears the subscription down; later publishes are dropped
    if err := c.WriteJSON(wsMessage{Type: "complete", ID: "1"}); err != nil { t.Fatalf("complete: %v", err) }
    time.Sleep(20 * time.Millisecond)
    s.Broker.Publish(run.ID, SSEEvent{Type: "search.completed"})
}

func TestWSSubscribeUnknownRun(t *testing.T) {
    s := newTestServer(t)
    c, cleanup := dialWS(t, s)
    defer cleanup()

    if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil { t.Fatalf("init: %v", err) }
    readUntil(t, c, "connection_ack", time.Second)

    pl, _ := json.Marshal(map[string]string{"runId": "nope"})
    if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil { t.Fatalf("subscribe: %v", err) }
    readUntil(t, c, "error", time.Second)
    readUntil(t, c, "complete", time.Second)
}
