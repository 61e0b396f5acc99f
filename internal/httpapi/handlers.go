package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"paidchat/internal/chatapi"
	"paidchat/internal/chatservice"
	"paidchat/internal/storage"
)

const maxRequestBodySize = 64 << 10

type handlers struct {
	backend Backend
	ready   func(ctx context.Context) error
	logger  *log.Logger
}

// sendMessage handles POST /chat
func (h *handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chatapi.SendMessageRequest](w, r)
	if !ok {
		return
	}
	res, err := h.backend.ProcessMessage(r.Context(), chatservice.Incoming{
		UserID:   strings.TrimSpace(req.UserID),
		Username: strings.TrimSpace(req.Username),
		AgentID:  req.AgentID,
		Message:  req.Message,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatapi.SendMessageResponse{
		Response:  res.Reply,
		Success:   true,
		MessageID: res.MessageID,
		ReplyID:   res.ReplyID,
	})
}

// history handles GET /chat/messages?agentId=
func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.backend.History(r.Context(), r.URL.Query().Get("agentId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	items := make([]chatapi.HistoryItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, chatapi.FromStoredMessage(*m))
	}
	writeJSON(w, http.StatusOK, items)
}

// cost handles GET /chat/cost?agentId=
func (h *handlers) cost(w http.ResponseWriter, r *http.Request) {
	c, err := h.backend.CurrentCost(r.Context(), r.URL.Query().Get("agentId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatapi.CostResponse{Cost: c})
}

// listAgents handles GET /agents
func (h *handlers) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.backend.Agents(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]chatapi.Agent, 0, len(agents))
	for _, a := range agents {
		out = append(out, chatapi.FromDomainAgent(*a, false))
	}
	writeJSON(w, http.StatusOK, out)
}

// createAgent handles POST /agents
func (h *handlers) createAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chatapi.CreateAgentRequest](w, r)
	if !ok {
		return
	}
	a, err := h.backend.CreateAgent(r.Context(), chatservice.NewAgent{
		OwnerID:           req.OwnerID,
		Name:              req.Name,
		Avatar:            req.ImageURL,
		Description:       req.Description,
		SystemPrompt:      req.SystemPrompt,
		RestrictedPhrases: req.RestrictedPhrases,
		InitialPrizePool:  req.InitialPrizePool,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, chatapi.FromDomainAgent(*a, true))
}

// agentStats handles GET /agents/{id}/stats
func (h *handlers) agentStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.backend.AgentStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatapi.FromDomainStats(*st))
}

// health handles GET /health
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Printf("health check failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chatservice.ErrEmptyMessage),
		errors.Is(err, chatservice.ErrMissingUser),
		errors.Is(err, chatservice.ErrInvalidAgent),
		errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatservice.ErrUnknownAgent):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		h.logger.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, chatapi.ErrorResponse{Error: message})
}
