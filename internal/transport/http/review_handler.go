package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"notecard-review-service/internal/app"
	"notecard-review-service/internal/domain"
)

// ReviewHandler serves one review session per websocket connection.
type ReviewHandler struct {
	service  *app.ReviewService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewReviewHandler(service *app.ReviewService, logger *slog.Logger) *ReviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewHandler{
		service: service,
		logger:  logger,
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

type scanPayload struct {
	Scope              app.Scope `json:"scope"`
	Path               string    `json:"path"`
	Text               string    `json:"text"`
	AllowVaultFallback bool      `json:"allowVaultFallback"`
}

// actionPayload is the wire form of app.Action; Action selects the variant.
type actionPayload struct {
	Action  string           `json:"action"`
	Keys    []string         `json:"keys"`
	ItemID  string           `json:"itemId"`
	Value   domain.BoolToken `json:"value"`
	BlankID string           `json:"blankId"`
	TokenID string           `json:"tokenId"`
	Text    string           `json:"text"`
	Grade   domain.Result    `json:"grade"`
}

type respondPayload struct {
	Index int `json:"index"`
	actionPayload
}

type submitPayload struct {
	Index int `json:"index"`
}

type pagePayload struct {
	Delta    int  `json:"delta"`
	PageSize *int `json:"pageSize"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type warningPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the review loop for ?userId=.
func (h *ReviewHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	if _, ok := h.service.User(userID); !ok {
		http.Error(w, domain.ErrUserNotFound.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// single writer; gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", "user", userID, "error", err)
				conn.Close()
				// keep draining so the read loop never blocks on send
				for range send {
				}
				return
			}
		}
	}()

	if view, err := h.service.Session(userID); err == nil {
		send <- outboundMessage[any]{Type: "session", Payload: view}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.dispatch(r.Context(), userID, inbound) {
			send <- msg
		}
	}

	close(send)
	<-writerDone
}

func (h *ReviewHandler) dispatch(ctx context.Context, userID string, inbound inboundMessage) []outboundMessage[any] {
	switch inbound.Type {
	case "scan":
		var p scanPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return errorReply(err)
		}
		view, err := h.service.Scan(ctx, userID, app.ScanRequest{
			Scope:              p.Scope,
			Path:               p.Path,
			Text:               p.Text,
			AllowVaultFallback: p.AllowVaultFallback,
		})
		if err != nil {
			return errorReply(err)
		}
		out := []outboundMessage[any]{{Type: "session", Payload: view}}
		for _, warning := range view.Warnings {
			out = append(out, outboundMessage[any]{Type: "warning", Payload: warningPayload{Message: warning}})
		}
		return out

	case "respond":
		var p respondPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return errorReply(err)
		}
		action, err := p.actionPayload.toAction()
		if err != nil {
			return errorReply(err)
		}
		if _, err := h.service.Respond(userID, p.Index, action); err != nil {
			return errorReply(err)
		}
		return h.sessionReply(userID)

	case "submit":
		var p submitPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return errorReply(err)
		}
		outcome, err := h.service.Submit(ctx, userID, p.Index)
		if err != nil {
			return errorReply(err)
		}
		out := []outboundMessage[any]{{Type: "submitted", Payload: outcome}}
		if outcome.Warning != "" {
			out = append(out, outboundMessage[any]{Type: "warning", Payload: warningPayload{Message: outcome.Warning}})
		}
		return out

	case "page":
		var p pagePayload
		if err := decode(inbound.Payload, &p); err != nil {
			return errorReply(err)
		}
		if p.PageSize != nil {
			if _, err := h.service.SetPageSize(userID, *p.PageSize); err != nil {
				return errorReply(err)
			}
		}
		view, err := h.service.GotoPage(userID, p.Delta)
		if err != nil {
			return errorReply(err)
		}
		return []outboundMessage[any]{{Type: "session", Payload: view}}

	case "stats":
		stats, err := h.service.Stats(ctx, userID)
		if err != nil {
			return errorReply(err)
		}
		return []outboundMessage[any]{{Type: "stats", Payload: stats}}
	}
	return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}}
}

func (h *ReviewHandler) sessionReply(userID string) []outboundMessage[any] {
	view, err := h.service.Session(userID)
	if err != nil {
		return errorReply(err)
	}
	return []outboundMessage[any]{{Type: "session", Payload: view}}
}

func (p actionPayload) toAction() (app.Action, error) {
	switch p.Action {
	case "select":
		return app.SelectOptions{Keys: p.Keys}, nil
	case "choose":
		return app.ChooseTrueFalse{ItemID: p.ItemID, Value: p.Value}, nil
	case "fill":
		return app.FillBlank{BlankID: p.BlankID, Text: p.Text}, nil
	case "place":
		return app.PlaceToken{BlankID: p.BlankID, TokenID: p.TokenID}, nil
	case "remove":
		return app.RemoveToken{BlankID: p.BlankID}, nil
	case "type":
		return app.TypeText{Text: p.Text}, nil
	case "reveal":
		return app.Reveal{}, nil
	case "grade":
		return app.SelfGrade{Grade: p.Grade}, nil
	}
	return nil, fmt.Errorf("unknown action %q", p.Action)
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// errorCodes names the sentinel errors clients can branch on.
var errorCodes = map[error]string{
	domain.ErrUserNotFound:        "user_not_found",
	domain.ErrNoActiveSession:     "no_session",
	domain.ErrCardIndexOutOfRange: "index_out_of_range",
	domain.ErrAlreadySubmitted:    "already_submitted",
	domain.ErrIncomplete:          "incomplete",
	domain.ErrWrongCardKind:       "wrong_card_kind",
	domain.ErrSourceNotFound:      "source_not_found",
	domain.ErrScanSuperseded:      "scan_superseded",
}

func errorReply(err error) []outboundMessage[any] {
	payload := errorPayload{Message: err.Error()}
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			payload.Code = code
			break
		}
	}
	return []outboundMessage[any]{{Type: "error", Payload: payload}}
}
