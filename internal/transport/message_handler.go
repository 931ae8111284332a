package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fishmarket/internal/domain"
	"fishmarket/internal/middleware"
	"fishmarket/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id,omitempty" validate:"omitempty,uuid"`
	Message    string `json:"message" validate:"required"`
}

const defaultKeepAlive = 20 * time.Second

type MessageHandler struct {
	messages  service.MessageService
	logger    *zap.Logger
	keepAlive time.Duration
}

func NewMessageHandler(messages service.MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger, keepAlive: defaultKeepAlive}
}

// RegisterRoutes mounts conversation routes on the /api/listings subrouter
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}/messages", h.History)
	r.Post("/{id}/messages", h.Send)
	r.Get("/{id}/messages/stream", h.Stream)
}

func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	listingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	messages, err := h.messages.History(r.Context(), actor, listingID)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	listingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req SendMessageRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	in := service.SendMessageInput{ListingID: listingID, Body: req.Message}
	if req.ReceiverID != "" {
		in.ReceiverID = uuid.MustParse(req.ReceiverID)
	}
	msg, err := h.messages.Send(r.Context(), actor, in)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, msg)
}

// Stream is a Server-Sent Events feed of new messages on the listing. The subscription lives
// exactly as long as the request.
func (h *MessageHandler) Stream(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	listingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	sub, err := h.messages.Subscribe(r.Context(), actor, listingID)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	defer sub.Close()

	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("Streaming not supported by response writer", zap.Error(err))
		return
	}

	h.logger.Debug("Message stream opened",
		zap.String("listing_id", listingID.String()),
		zap.String("user_id", actor.UserID.String()),
	)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := writeEvent(w, msg); err != nil {
				h.logger.Debug("Message stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, msg *domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: message\ndata: %s\n\n", msg.ID, payload)
	return err
}
