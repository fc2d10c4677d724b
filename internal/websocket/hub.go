package websocket

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// notifyBuffer bounds account notifications waiting for the hub loop.
const notifyBuffer = 256

type notification struct {
	accountID string
	message   []byte
	revoke    bool
}

// Hub maintains the set of active clients, grouped by the account they
// authenticated as, and pushes account-scoped messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// A map of account IDs to the set of clients signed in as that account.
	accounts map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	notify     chan notification
	done       chan struct{}

	connected atomic.Int64
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		accounts:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan notification, notifyBuffer),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns when ctx is
// cancelled, closing every client still connected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			if h.accounts[client.AccountID] == nil {
				h.accounts[client.AccountID] = make(map[*Client]bool)
			}
			h.accounts[client.AccountID][client] = true
			h.connected.Store(int64(len(h.clients)))
			log.Info().Str("user_id", client.AccountID).Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Str("user_id", client.AccountID).Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case n := <-h.notify:
			for client := range h.accounts[n.accountID] {
				select {
				case client.Send <- n.message:
					if n.revoke {
						h.drop(client)
					}
				default:
					h.drop(client)
				}
			}
		}
	}
}

// Register adds a client to the hub. It is a no-op once the hub has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// NotifyAccount pushes a message to every client signed in as accountID.
// Session revocations also disconnect those clients after the message is
// delivered. It never blocks; notifications are dropped when the hub is
// saturated.
func (h *Hub) NotifyAccount(accountID, action string, payload interface{}) {
	msg, err := NewMessage(action, payload)
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode websocket notification")
		return
	}
	select {
	case h.notify <- notification{accountID: accountID, message: msg, revoke: action == ActionSessionRevoked}:
	default:
		log.Warn().Str("user_id", accountID).Str("action", action).Msg("Websocket hub saturated, dropping notification")
	}
}

// ConnectedClients reports the number of connected clients.
func (h *Hub) ConnectedClients() int {
	return int(h.connected.Load())
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	if subs, ok := h.accounts[client.AccountID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.accounts, client.AccountID)
		}
	}
	h.connected.Store(int64(len(h.clients)))
}
