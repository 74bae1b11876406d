package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/esports-results/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(testLogger())
}

// joinRoom places a client into a room without going through Run, so tests
// control membership directly.
func joinRoom(h *Hub, room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
}

func roomSize(h *Hub, room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func TestBroadcastToRoomDeliversToRoomOnly(t *testing.T) {
	h := newTestHub(t)
	inRoom := &Client{send: make(chan []byte, 4), Room: "1"}
	other := &Client{send: make(chan []byte, 4), Room: "2"}
	joinRoom(h, "1", inRoom)
	joinRoom(h, "2", other)

	h.BroadcastToRoom("1", []byte("hello"))

	require.Len(t, inRoom.send, 1)
	assert.Equal(t, []byte("hello"), <-inRoom.send)
	assert.Empty(t, other.send)
	assert.Equal(t, 1, roomSize(h, "2"))
}

func TestBroadcastToRoomDropsSlowClients(t *testing.T) {
	h := newTestHub(t)
	slow := &Client{send: make(chan []byte), Room: "1"}
	fast := &Client{send: make(chan []byte, 4), Room: "1"}
	joinRoom(h, "1", slow)
	joinRoom(h, "1", fast)

	h.BroadcastToRoom("1", []byte("update"))

	assert.Equal(t, 1, roomSize(h, "1"))
	require.Len(t, fast.send, 1)
	_, ok := <-slow.send
	assert.False(t, ok, "dropped client should have its send channel closed")
}

func TestBroadcastToRoomConcurrent(t *testing.T) {
	h := newTestHub(t)
	const clients = 8
	for i := 0; i < clients; i++ {
		// Unbuffered send channels with no reader force every broadcast
		// down the drop path, which mutates the room map.
		joinRoom(h, "1", &Client{send: make(chan []byte), Room: "1"})
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.BroadcastToRoom("1", []byte("event"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, roomSize(h, "1"))
}

func TestForwardWrapsPayloadInEnvelope(t *testing.T) {
	h := newTestHub(t)
	client := &Client{send: make(chan []byte, 4), Room: "42"}
	joinRoom(h, "42", client)

	payload, err := json.Marshal(events.MatchResultFinalizedEvent{
		SubmissionID: 7,
		MatchID:      10,
		TournamentID: 42,
		WinnerTeamID: 5,
		LoserTeamID:  6,
	})
	require.NoError(t, err)

	msgs := make(chan *message.Message, 1)
	msgs <- message.NewMessage(uuid.NewString(), payload)
	close(msgs)

	h.forward(context.Background(), events.TopicMatchResultFinalized, msgs)

	require.Len(t, client.send, 1)
	var env envelope
	require.NoError(t, json.Unmarshal(<-client.send, &env))
	assert.Equal(t, events.TopicMatchResultFinalized, env.Type)
	assert.JSONEq(t, string(payload), string(env.Payload))
}

func TestForwardSkipsUnroutableMessages(t *testing.T) {
	h := newTestHub(t)
	client := &Client{send: make(chan []byte, 4), Room: "42"}
	joinRoom(h, "42", client)

	msgs := make(chan *message.Message, 1)
	msgs <- message.NewMessage(uuid.NewString(), []byte(`{"no_tournament":true}`))
	close(msgs)

	h.forward(context.Background(), events.TopicMatchResultConfirmed, msgs)

	assert.Empty(t, client.send)
}
