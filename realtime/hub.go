// Package realtime fans result-pipeline events out to websocket clients.
// Clients join a room per tournament; the hub bridges bus topics into those
// rooms so spectators see confirmations, disputes and finalizations live.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Dosada05/esports-results/events"
)

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client joined room", slog.String("room", client.Room))

		case client := <-h.Unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.Room]; ok {
				if _, registered := clients[client]; registered {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.Room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToRoom delivers a message to every client of one room. Clients
// whose send buffer is full are dropped rather than allowed to block the hub.
// Dropping mutates the room map, so the full lock is required here.
func (h *Hub) BroadcastToRoom(room string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.rooms[room]
	for client := range clients {
		select {
		case client.send <- message:
		default:
			client.closeSend()
			delete(clients, client)
		}
	}
	if len(clients) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, clients := range h.rooms {
		for client := range clients {
			client.closeSend()
		}
		delete(h.rooms, room)
	}
}

// envelope is the wire shape pushed to websocket clients.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// routable extracts the tournament room from any bus event payload.
type routable struct {
	TournamentID int `json:"tournament_id"`
}

// ConsumeBus forwards the given bus topics into tournament rooms until ctx
// is done. Each topic gets its own goroutine.
func (h *Hub) ConsumeBus(ctx context.Context, bus events.Bus, topics ...string) error {
	for _, topic := range topics {
		messages, err := bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		go h.forward(ctx, topic, messages)
	}
	return nil
}

func (h *Hub) forward(ctx context.Context, topic string, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var route routable
			if err := json.Unmarshal(msg.Payload, &route); err != nil || route.TournamentID == 0 {
				msg.Ack()
				continue
			}
			out, err := json.Marshal(envelope{Type: topic, Payload: json.RawMessage(msg.Payload)})
			if err != nil {
				h.logger.Error("failed to encode websocket envelope", slog.Any("error", err))
				msg.Ack()
				continue
			}
			h.BroadcastToRoom(strconv.Itoa(route.TournamentID), out)
			msg.Ack()
		}
	}
}
