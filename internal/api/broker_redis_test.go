package api

import (
    "testing"

    redis "github.com/redis/go-redis/v9"
)

// Unsubscribe must never close the subscriber channel itself; the reader
// goroutine owns the close. A channel unknown to the broker stays usable.
func TestRedisBrokerUnsubscribeLeavesChannelOpen(t *testing.T) {
    b := &RedisBroker{subs: map[chan SSEEvent]*redis.PubSub{}}
    ch := make(chan SSEEvent, 1)

    b.Unsubscribe("run_x", ch)
    b.Unsubscribe("run_x", ch) // idempotent

    ch <- SSEEvent{Type: "search.progress"}
    evt, ok := <-ch
    if !ok {
        t.Fatal("channel was closed by Unsubscribe")
    }
    if evt.Type != "search.progress" {
        t.Fatalf("unexpected event: %+v", evt)
    }
}
