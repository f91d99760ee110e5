// Package api exposes the local HTTP surface of web mode: a health probe and
// an ask endpoint that forwards prompts into the node. It binds to loopback
// by default and allows any origin, so browser frontends served from
// anywhere on the machine can talk to it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Asker bridges ask requests into the node loop.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

type AskRequest struct {
	Prompt string `json:"prompt"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	log     *zap.Logger
	asker   Asker
	addr    string
	timeout time.Duration
	router  *mux.Router
	httpSrv *http.Server
}

func NewServer(log *zap.Logger, asker Asker, addr string, timeout time.Duration) *Server {
	s := &Server{
		log:     log,
		asker:   asker,
		addr:    addr,
		timeout: timeout,
	}

	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/ask", s.handleAsk).Methods(http.MethodPost, http.MethodOptions)
	s.router = r
	return s
}

func (s *Server) Name() string { return "api" }

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind http api on %s: %w", s.addr, err)
	}

	s.httpSrv = &http.Server{Handler: s.router}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", zap.Error(err))
		}
	}()

	s.log.Info("HTTP API listening", zap.String("url", "http://"+ln.Addr().String()))
	return nil
}

func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// ServeHTTP makes the server usable directly as a handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "prompt is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	answer, err := s.asker.Ask(ctx, req.Prompt)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		s.log.Warn("ask failed", zap.Int("status", status), zap.Error(err))
		writeJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{Answer: answer})
}

// corsMiddleware opens the API to browser clients from any origin and fields
// their preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
