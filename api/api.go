// Package api serves the chatbot over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	chatbot "github.com/neuralmind-ai/nsx-chatbot"
	"github.com/neuralmind-ai/nsx-chatbot/common/logger"
)

// Chatbot is the part of the engine exposed over HTTP.
type Chatbot interface {
	Answer(ctx context.Context, req chatbot.AnswerRequest) (*chatbot.Reply, error)
	Greeting(ctx context.Context, user, bot, index string) ([]string, error)
	Reset(ctx context.Context, user, bot string) error
	SetUserConfig(ctx context.Context, user, bot, key, value string) error
}

type Handler struct {
	bot Chatbot
}

func NewHandler(bot Chatbot) *Handler { return &Handler{bot: bot} }

// NewRouter returns the router with every route and the metrics endpoint
// mounted at metricsPath.
func NewRouter(bot Chatbot, metricsPath string) chi.Router {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	NewHandler(bot).RegisterRoutes(r)
	r.Handle(metricsPath, promhttp.Handler())
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.Chat)
		r.Post("/greeting", h.Greeting)
		r.Post("/reset", h.Reset)
		r.Post("/config", h.SetConfig)
	})
}

type chatRequest struct {
	UserID        string `json:"user_id"`
	ChatbotID     string `json:"chatbot_id"`
	Index         string `json:"index"`
	Message       string `json:"message"`
	APIKey        string `json:"api_key,omitempty"`
	Verbose       bool   `json:"verbose,omitempty"`
	ReturnDebug   bool   `json:"return_debug,omitempty"`
	BM25Only      bool   `json:"bm25_only,omitempty"`
	DisableMemory bool   `json:"disable_memory,omitempty"`
	DisableFAQ    bool   `json:"disable_faq,omitempty"`
	UseSense      bool   `json:"use_sense,omitempty"`
	Model         string `json:"model,omitempty"`
}

type chatResponse struct {
	TurnID  string `json:"turn_id"`
	Answer  string `json:"answer"`
	Outcome string `json:"outcome"`
	Harmful bool   `json:"harmful,omitempty"`
}

// Chat answers one message. Failures still carry the user-facing text.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Index == "" || req.Message == "" {
		Error(w, http.StatusBadRequest, "user_id, index and message are required")
		return
	}
	reply, err := h.bot.Answer(r.Context(), chatbot.AnswerRequest{
		UserID:    req.UserID,
		ChatbotID: req.ChatbotID,
		Index:     req.Index,
		Message:   req.Message,
		APIKey:    req.APIKey,
		Options: chatbot.Options{
			Verbose:       req.Verbose,
			ReturnDebug:   req.ReturnDebug,
			BM25Only:      req.BM25Only,
			DisableMemory: req.DisableMemory,
			DisableFAQ:    req.DisableFAQ,
			UseSense:      req.UseSense,
			Model:         req.Model,
		},
	})
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	JSON(w, status, chatResponse{TurnID: reply.TurnID, Answer: reply.Text, Outcome: reply.Outcome, Harmful: reply.Harmful})
}

type userRequest struct {
	UserID    string `json:"user_id"`
	ChatbotID string `json:"chatbot_id"`
	Index     string `json:"index,omitempty"`
	Key       string `json:"key,omitempty"`
	Value     string `json:"value,omitempty"`
}

func decodeUser(w http.ResponseWriter, r *http.Request) (userRequest, bool) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		Error(w, http.StatusBadRequest, "user_id is required")
		return req, false
	}
	return req, true
}

func (h *Handler) Greeting(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	msgs, err := h.bot.Greeting(r.Context(), req.UserID, req.ChatbotID, req.Index)
	if err != nil {
		logger.Errorf("api: greeting for %s: %v", req.UserID, err)
		Error(w, http.StatusInternalServerError, "greeting failed")
		return
	}
	if msgs == nil {
		msgs = []string{}
	}
	JSON(w, http.StatusOK, map[string][]string{"messages": msgs})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	if err := h.bot.Reset(r.Context(), req.UserID, req.ChatbotID); err != nil {
		logger.Errorf("api: reset for %s: %v", req.UserID, err)
		Error(w, http.StatusInternalServerError, "reset failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetConfig(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	if req.Key != chatbot.ConfigVerbose && req.Key != chatbot.ConfigModel {
		Error(w, http.StatusBadRequest, "unknown config key")
		return
	}
	if err := h.bot.SetUserConfig(r.Context(), req.UserID, req.ChatbotID, req.Key, req.Value); err != nil {
		logger.Errorf("api: set config for %s: %v", req.UserID, err)
		Error(w, http.StatusInternalServerError, "set config failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("api: encode response: %v", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
