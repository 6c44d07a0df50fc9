package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/brewpay/brewbot/internal/chat"
	"github.com/brewpay/brewbot/internal/payments"
	"github.com/brewpay/brewbot/internal/telemetry"
)

// Reconciler merges a webhook notification with gateway state.
type Reconciler interface {
	Reconcile(ctx context.Context, payID string) (payments.Outcome, error)
}

// Dialogue handles inbound chat updates.
type Dialogue interface {
	HandleUpdate(ctx context.Context, upd *chat.Update) error
}

type Handler struct {
	reconciler Reconciler
	dialogue   Dialogue
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewHandler(reconciler Reconciler, dialogue Dialogue, logger *slog.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		dialogue:   dialogue,
		validate:   validator.New(),
		logger:     logger,
	}
}

type notifyRequest struct {
	PayID string `json:"payID" validate:"required"`
}

// HandleNotify is the gateway webhook intake. The payload's status is
// ignored; only the payment id is read, as a lookup key. Every reconcile
// outcome is acknowledged with 200 so the gateway stops redelivering;
// only a failure to reach authoritative state answers 500, which asks
// for redelivery.
func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "payID is required")
		return
	}

	outcome, err := h.reconciler.Reconcile(r.Context(), req.PayID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "reconcile failed, requesting redelivery",
			"error", err, "pay_id", req.PayID)
		h.writeError(w, http.StatusInternalServerError, "reconcile failed")
		return
	}

	h.logger.InfoContext(r.Context(), "notification processed",
		"pay_id", req.PayID, "outcome", outcome.String())
	h.writeJSON(w, http.StatusOK, map[string]string{"outcome": outcome.String()})
}

// HandleChatWebhook receives chat-platform updates. The platform gets a
// 200 regardless: a failed turn was already surfaced to the user, and a
// platform-level redelivery would only repeat it.
func (h *Handler) HandleChatWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd, err := chat.ParseUpdate(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid update payload")
		return
	}
	if upd == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.dialogue.HandleUpdate(r.Context(), upd); err != nil {
		h.logger.ErrorContext(r.Context(), "chat update failed",
			"error", err, "chat_id", upd.ChatID)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// NewMux wires the service routes, including the prometheus scrape
// endpoint produced by the meter provider.
func NewMux(h *Handler, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /notify", telemetry.WithHTTPRoute(h.HandleNotify))
	mux.HandleFunc("POST /chat/webhook", telemetry.WithHTTPRoute(h.HandleChatWebhook))
	mux.HandleFunc("GET /healthz", telemetry.WithHTTPRoute(h.HandleHealthz))
	mux.Handle("GET /metrics", metrics)
	return mux
}
