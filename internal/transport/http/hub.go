package http

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"quizbot/internal/domain"
)

const sendBuffer = 32

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type questionPayload struct {
	Token   string   `json:"token"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type noticePayload struct {
	Text string `json:"text"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type client struct {
	send chan outboundMessage[any]
	done chan struct{}
}

// Hub delivers questions and notices to connected WebSocket clients, one
// connection per participant.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	newToken func() string
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*client),
		newToken: uuid.NewString,
	}
}

func (h *Hub) PresentQuestion(_ context.Context, participantID, prompt string, options []string, _ int) (string, error) {
	token := h.newToken()
	err := h.push(participantID, outboundMessage[any]{Type: "question", Payload: questionPayload{
		Token:   token,
		Prompt:  prompt,
		Options: options,
	}})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (h *Hub) Notify(_ context.Context, participantID, text string) error {
	return h.push(participantID, outboundMessage[any]{Type: "notice", Payload: noticePayload{Text: text}})
}

// push never blocks: the engine calls it with a session locked.
func (h *Hub) push(participantID string, msg outboundMessage[any]) error {
	h.mu.RLock()
	c, ok := h.clients[participantID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", participantID, domain.ErrParticipantOffline)
	}
	select {
	case <-c.done:
		return fmt.Errorf("%s: %w", participantID, domain.ErrParticipantOffline)
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("%s: send buffer full: %w", participantID, domain.ErrParticipantOffline)
	}
}

// register attaches a new connection for the participant, replacing any older one.
func (h *Hub) register(participantID string) *client {
	c := &client{
		send: make(chan outboundMessage[any], sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[participantID] = c
	h.mu.Unlock()
	return c
}

// unregister detaches c and reports whether it was still the participant's
// current connection.
func (h *Hub) unregister(participantID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[participantID] != c {
		return false
	}
	delete(h.clients, participantID)
	return true
}
