package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/freightdesk/dispatch-ai/internal/access"
	"github.com/freightdesk/dispatch-ai/internal/ledger"
	"github.com/freightdesk/dispatch-ai/internal/llm"
	"github.com/freightdesk/dispatch-ai/internal/orchestrator"
	"github.com/freightdesk/dispatch-ai/internal/router"
	"github.com/freightdesk/dispatch-ai/internal/tools"
	"github.com/freightdesk/dispatch-ai/internal/utils"
)

// handler is the thin HTTP glue over the core. No business logic lives here.
type handler struct {
	orch     *orchestrator.Orchestrator
	router   *router.Router
	ledger   *ledger.Ledger
	executor *tools.Executor
}

func newHandler(orch *orchestrator.Orchestrator, rtr *router.Router, led *ledger.Ledger, executor *tools.Executor) http.Handler {
	h := &handler{orch: orch, router: rtr, ledger: led, executor: executor}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat", h.chat)
	mux.HandleFunc("POST /v1/route", h.route)
	mux.HandleFunc("POST /v1/tools/execute", h.executeTool)
	mux.HandleFunc("GET /v1/tools/schema", h.toolSchema)
	mux.HandleFunc("GET /v1/costs/summary", h.costSummary)
	mux.HandleFunc("GET /v1/costs/today", h.todaySpend)
	mux.HandleFunc("GET /v1/costs/budget", h.budgetStatus)
	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// callerRequest is the identity block shared by chat and tool execution.
type callerRequest struct {
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	CarrierID string `json:"carrierId,omitempty"`
}

func (c callerRequest) caller() (access.Caller, error) {
	switch c.Role {
	case "carrier":
		if c.CarrierID == "" {
			return nil, fmt.Errorf("carrier role requires carrierId")
		}
		return access.Carrier{UserID: c.UserID, CarrierID: c.CarrierID}, nil
	case "broker":
		return access.Broker{UserID: c.UserID}, nil
	case "operations":
		return access.Operations{UserID: c.UserID}, nil
	case "accounting":
		return access.Accounting{UserID: c.UserID}, nil
	case "admin":
		return access.Admin{UserID: c.UserID}, nil
	case "public":
		return access.Public{}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", c.Role)
	}
}

type chatRequest struct {
	callerRequest
	Message string `json:"message"`
	Console string `json:"console"`
}

func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	caller, err := req.caller()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.orch.Chat(r.Context(), orchestrator.ChatInput{
		UserID:  req.UserID,
		Caller:  caller,
		Message: req.Message,
		Console: req.Console,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type routeRequest struct {
	QueryType   string        `json:"queryType"`
	System      string        `json:"system,omitempty"`
	Messages    []llm.Message `json:"messages"`
	Model       string        `json:"model,omitempty"`
	MaxTokens   int           `json:"maxTokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	UserID      string        `json:"userId,omitempty"`
	Source      string        `json:"source,omitempty"`
}

func (h *handler) route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	resp, err := h.router.Route(r.Context(), router.Request{
		QueryType:   router.QueryType(req.QueryType),
		System:      req.System,
		Messages:    req.Messages,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		UserID:      req.UserID,
		Source:      req.Source,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type executeToolRequest struct {
	callerRequest
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

func (h *handler) executeTool(w http.ResponseWriter, r *http.Request) {
	var req executeToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	caller, err := req.caller()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result := h.executor.Execute(r.Context(), tools.Name(req.Name), req.Args, caller)
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) toolSchema(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("format") {
	case "openai":
		writeJSON(w, http.StatusOK, tools.ToOpenAI())
	case "anthropic":
		writeJSON(w, http.StatusOK, tools.ToAnthropic())
	default:
		writeJSON(w, http.StatusOK, tools.Definitions())
	}
}

func (h *handler) costSummary(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			days = n
		}
	}
	summary, err := h.ledger.Summary(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) todaySpend(w http.ResponseWriter, r *http.Request) {
	spend, err := h.ledger.TodaySpend(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, spend)
}

func (h *handler) budgetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.ledger.BudgetStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := utils.MarshalNoEscape(v)
	if err != nil {
		log.Error().Err(err).Msg("response marshal failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
