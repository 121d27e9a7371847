// Package toolserver implements the HTTP surface a tool server exposes to
// the host: a tool catalog, an execution endpoint, and a health probe.
package toolserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/effective-security/xlog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcphost", "toolserver")

// ITool is one tool the server advertises and executes.
type ITool interface {
	// Name returns the name of the tool, unique within the server.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	Description() string
	// InputSchema returns the JSON Schema of the tool's arguments.
	InputSchema() json.RawMessage

	// Call executes the tool. A returned error is reported to the model as
	// a failed call, not as a server failure.
	Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

type toolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type executeRequest struct {
	ToolName   string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters"`
}

type executeResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// Server serves a fixed set of tools over HTTP.
type Server struct {
	router *chi.Mux
	tools  map[string]ITool
	order  []string
}

// New creates a Server over the given tools, advertised in the given order.
func New(tools ...ITool) *Server {
	s := &Server{
		router: chi.NewRouter(),
		tools:  make(map[string]ITool, len(tools)),
	}
	for _, t := range tools {
		if _, ok := s.tools[t.Name()]; ok {
			continue
		}
		s.tools[t.Name()] = t
		s.order = append(s.order, t.Name())
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/list/tools", s.handleListTools)
	s.router.Post("/execute/tool", s.handleExecuteTool)

	return s
}

// Handler exposes the root HTTP handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	descriptors := make([]toolDescriptor, 0, len(s.order))
	for _, name := range s.order {
		t := s.tools[name]
		descriptors = append(descriptors, toolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	writeJSON(w, http.StatusOK, descriptors)
}

func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	tool, ok := s.tools[req.ToolName]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown tool: " + req.ToolName})
		return
	}

	args := req.Parameters
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	result, err := tool.Call(r.Context(), args)
	if err != nil {
		// Tool-level failure: the call completed, the tool reports an error.
		logger.ContextKV(r.Context(), xlog.WARNING,
			"tool", req.ToolName,
			"status", "tool_failed",
			"err", err.Error(),
		)
		msg, _ := json.Marshal(err.Error())
		writeJSON(w, http.StatusOK, executeResponse{
			Success: false,
			Result:  msg,
		})
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{
		Success: true,
		Result:  result,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
