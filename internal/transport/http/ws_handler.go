package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quizbot/internal/app"
	"quizbot/internal/domain"
)

type WSHandler struct {
	engine   *app.Engine
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewWSHandler serves quizzes over WebSocket. The engine must deliver through hub.
func NewWSHandler(engine *app.Engine, hub *Hub) *WSHandler {
	return &WSHandler{
		engine: engine,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Token  string `json:"token"`
	Option int    `json:"option"`
}

// ServeWS upgrades the request, starts the requested quiz for the user and
// relays answers until the connection closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	bankID := r.URL.Query().Get("bank")
	userID := r.URL.Query().Get("userId")
	if bankID == "" || userID == "" {
		http.Error(w, "missing bank or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := context.WithoutCancel(r.Context())
	c := h.hub.register(userID)

	if _, err := h.engine.Start(ctx, userID, bankID); err != nil {
		h.hub.unregister(userID, c)
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: startError(err)}})
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-c.send:
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Token == "" {
				h.sendError(userID, "invalid answer payload")
				continue
			}
			if err := h.engine.Resolve(ctx, payload.Token, payload.Option); err != nil {
				log.Printf("resolve %s for %s: %v", payload.Token, userID, err)
				h.sendError(userID, "could not record answer")
			}
		case "cancel":
			if _, err := h.engine.Cancel(ctx, userID); err != nil {
				log.Printf("cancel quiz for %s: %v", userID, err)
			}
			_ = h.hub.Notify(ctx, userID, "Quiz cancelled.")
		default:
			h.sendError(userID, "unsupported message type")
		}
	}

	close(c.done)
	<-writerDone
	if h.hub.unregister(userID, c) {
		if _, err := h.engine.Cancel(ctx, userID); err != nil {
			log.Printf("cancel quiz for %s on disconnect: %v", userID, err)
		}
	}
}

func (h *WSHandler) sendError(userID, message string) {
	if err := h.hub.push(userID, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}); err != nil {
		log.Printf("ws error frame to %s: %v", userID, err)
	}
}

func startError(err error) string {
	switch {
	case errors.Is(err, domain.ErrBankNotFound), errors.Is(err, domain.ErrInvalidBankID):
		return "quiz not found"
	case errors.Is(err, domain.ErrEmptyBank):
		return "quiz has no valid questions"
	default:
		log.Printf("ws start quiz: %v", err)
		return "could not start quiz"
	}
}
