package websocket

import (
	"testing"
	"time"

	"cosmossdk.io/log"
)

func recvFrame(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case frame := <-c.send:
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame within 1s")
		return nil
	}
}

func waitClientCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestHubBroadcastFanout verifies every subscriber receives every frame
func TestHubBroadcastFanout(t *testing.T) {
	hub := NewHub(log.NewNopLogger())
	go hub.Run()
	defer hub.Stop()

	a := NewClient(hub, nil, "a", "127.0.0.1")
	b := NewClient(hub, nil, "b", "127.0.0.1")
	hub.register <- a
	hub.register <- b

	hub.Broadcast([]byte(`{"n":1}`))

	if got := string(recvFrame(t, a)); got != `{"n":1}` {
		t.Errorf("a got = %q, want %q", got, `{"n":1}`)
	}
	if got := string(recvFrame(t, b)); got != `{"n":1}` {
		t.Errorf("b got = %q, want %q", got, `{"n":1}`)
	}

	if got := hub.ClientCount(); got != 2 {
		t.Errorf("client count = %d, want 2", got)
	}
}

// TestHubDropsSlowSubscriber verifies a subscriber with a full send buffer
// is disconnected instead of stalling the broadcast
func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(log.NewNopLogger())
	go hub.Run()
	defer hub.Stop()

	fast := NewClient(hub, nil, "fast", "127.0.0.1")
	slow := NewClient(hub, nil, "slow", "127.0.0.1")
	hub.register <- fast
	hub.register <- slow

	// Fill the slow client's buffer so the next broadcast cannot enqueue
	for i := 0; i < sendBufferSize; i++ {
		slow.send <- []byte("backlog")
	}

	hub.Broadcast([]byte("fresh"))

	if got := string(recvFrame(t, fast)); got != "fresh" {
		t.Errorf("fast got = %q, want %q", got, "fresh")
	}

	waitClientCount(t, hub, 1)

	stats := hub.Stats()
	if stats.SlowDrops != 1 {
		t.Errorf("slow drops = %d, want 1", stats.SlowDrops)
	}

	// The backlog stays readable, then the closed channel ends the drain
	drained := 0
	for range slow.send {
		drained++
	}
	if drained != sendBufferSize {
		t.Errorf("drained = %d, want %d", drained, sendBufferSize)
	}
}

// TestHubUnregisterIdempotent verifies a client already dropped by the
// broadcast path can still be unregistered by its read pump
func TestHubUnregisterIdempotent(t *testing.T) {
	hub := NewHub(log.NewNopLogger())
	go hub.Run()
	defer hub.Stop()

	c := NewClient(hub, nil, "c", "127.0.0.1")
	hub.register <- c
	hub.unregister <- c
	hub.unregister <- c

	waitClientCount(t, hub, 0)

	stats := hub.Stats()
	if stats.TotalConnections != 1 {
		t.Errorf("total connections = %d, want 1", stats.TotalConnections)
	}
}

// TestHubBroadcastNeverBlocks verifies frames are dropped, not queued,
// when the run loop is not keeping up
func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(log.NewNopLogger())
	// No Run loop: the frames channel fills and Broadcast must not stall
	for i := 0; i < 100; i++ {
		hub.Broadcast([]byte("x"))
	}
}
