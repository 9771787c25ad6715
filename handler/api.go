package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"store-assistant/internal/domain"
	"store-assistant/internal/usecase"
	logx "store-assistant/pkg/logger"
)

type sessionResponse struct {
	SessionID      string    `json:"session_id"`
	Nonce          string    `json:"nonce"`
	ExpiresAt      time.Time `json:"expires_at"`
	WelcomeMessage string    `json:"welcome_message"`
}

type chatRequest struct {
	Messages []domain.Message `json:"messages"`
	Mode     domain.Mode      `json:"mode,omitempty"`
}

type chatResponse struct {
	AssistantReply  string                 `json:"assistant_reply"`
	Products        []domain.ProductCard   `json:"products"`
	Order           *domain.ValidatedOrder `json:"order"`
	SuggestCheckout bool                   `json:"suggest_checkout"`
	Mode            domain.Mode            `json:"mode"`
	CheckoutStep    string                 `json:"checkout_step,omitempty"`
	CreatedOrder    *domain.OrderResult    `json:"created_order,omitempty"`
	OrderError      *errorResponse         `json:"order_error,omitempty"`
}

type createOrderRequest struct {
	Products []domain.ProductRef `json:"products"`
	Customer domain.CustomerInfo `json:"customer"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: usecase.ReasonInvalidBody, Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: usecase.ReasonInvalidBody, Err: errors.New("trailing data after JSON body")}
	}
	return nil
}

// fail logs err against the request and writes the error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ue := usecase.AsError(err)
	status := statusFor(ue.Code)
	ev := logx.Warn()
	if status >= http.StatusInternalServerError {
		ev = logx.Error()
	}
	ev.Str("correlation_id", correlationID(r.Context())).
		Str("op", op).
		Str("code", string(ue.Code)).
		Str("reason", ue.Reason).
		Err(ue.Err).
		Msg("request failed")
	writeError(w, ue)
}

// handleSession starts a chat session. A still-valid nonce is refreshed for
// the same session and customer instead.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	var identity *domain.Identity
	if existing := r.Header.Get(headerNonce); existing != "" {
		if claims, err := h.nonces.Verify(existing); err == nil {
			sessionID, identity = claims.SessionID, claims.Identity()
		}
	}

	nonce, expires, err := h.nonces.Issue(sessionID, identity, h.nonceTTL)
	if err != nil {
		h.fail(w, r, "session", err)
		return
	}

	welcome := domain.DefaultSettings().WelcomeMessage
	if s, err := h.settings.Load(r.Context()); err != nil {
		logx.Warn().Str("correlation_id", correlationID(r.Context())).Err(err).Msg("settings unavailable, using default welcome message")
	} else if s.WelcomeMessage != "" {
		welcome = s.WelcomeMessage
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:      sessionID,
		Nonce:          nonce,
		ExpiresAt:      expires,
		WelcomeMessage: welcome,
	})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, "chat", err)
		return
	}
	mode := req.Mode
	switch mode {
	case "":
		mode = domain.ModeChat
	case domain.ModeChat, domain.ModeCheckout:
	default:
		h.fail(w, r, "chat", &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: usecase.ReasonInvalidBody, Err: fmt.Errorf("unknown mode %q", req.Mode)})
		return
	}

	claims := claimsFrom(r.Context())
	out, err := h.chat.Chat(r.Context(), usecase.ChatInput{
		SessionID: claims.SessionID,
		Messages:  req.Messages,
		Mode:      mode,
		Identity:  claims.Identity(),
	})
	if err != nil {
		h.fail(w, r, "chat", err)
		return
	}

	resp := chatResponse{
		AssistantReply:  out.Reply.AssistantReply,
		Products:        out.Reply.Products,
		Order:           out.Reply.Order,
		SuggestCheckout: out.Reply.SuggestCheckout,
		Mode:            out.Mode,
		CheckoutStep:    out.CheckoutField,
		CreatedOrder:    out.Order,
	}
	if resp.Products == nil {
		resp.Products = []domain.ProductCard{}
	}
	if out.OrderError != nil {
		resp.OrderError = &errorResponse{Code: out.OrderError.Reason, Message: out.OrderError.Message()}
	}

	ev := logx.Info().
		Str("correlation_id", correlationID(r.Context())).
		Str("session_id", claims.SessionID).
		Str("mode", string(resp.Mode)).
		Int("products", len(resp.Products))
	if resp.CheckoutStep != "" {
		ev = ev.Str("checkout_step", resp.CheckoutStep)
	}
	if out.Order != nil {
		ev = ev.Int64("order_id", out.Order.OrderID)
	}
	ev.Msg("chat turn")

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, "create_order", err)
		return
	}

	claims := claimsFrom(r.Context())
	key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if key != "" {
		key = "endpoint:" + claims.SessionID + ":" + key
	}

	res, err := h.orders.Place(r.Context(), usecase.PlaceOrderInput{
		Products:            req.Products,
		Customer:            req.Customer,
		Identity:            claims.Identity(),
		IdempotencyKey:      key,
		RequireFullCustomer: true,
	})
	if err != nil {
		h.fail(w, r, "create_order", err)
		return
	}

	logx.Info().
		Str("correlation_id", correlationID(r.Context())).
		Str("session_id", claims.SessionID).
		Int64("order_id", res.OrderID).
		Str("total", res.Total.String()).
		Msg("order created")
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if err := h.chat.Restart(r.Context(), claims.SessionID); err != nil {
		h.fail(w, r, "restart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
