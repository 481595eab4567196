package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/xhad/docchat/pkg/rag"
	"github.com/xhad/docchat/pkg/users"
)

type Config struct {
	Host string
	Port int
	// MaxUploadBytes caps the size of an upload request body.
	MaxUploadBytes int64
	// Streaming sends partial answers over the WebSocket before the final one.
	Streaming bool
}

// Server exposes the chat service over HTTP and WebSocket.
type Server struct {
	config  Config
	service *rag.Service
	users   *users.Store
	mux     *http.ServeMux
}

func New(config Config, service *rag.Service, users *users.Store) *Server {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 32 << 20
	}

	s := &Server{
		config:  config,
		service: service,
		users:   users,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /submit_id", s.handleSubmitID)
	s.mux.HandleFunc("POST /upload_pdfs", s.handleUpload)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /chat_history/{session_id}", s.handleChatHistory)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (s *Server) Handler() http.Handler {
	return withRequestLogging(withRecovery(s.mux))
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Printf("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
