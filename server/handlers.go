package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/history"
	"github.com/xhad/docchat/pkg/users"
)

// Multipart field names that may carry uploaded files.
var uploadFields = []string{"pdfs", "files", "files[]"}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type submitIDRequest struct {
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
}

type loginResponse struct {
	Message  string   `json:"message"`
	Sessions []string `json:"sessions"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type uploadResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type historyResponse struct {
	History []models.Turn `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := requireFields(map[string]string{"username": req.Username, "password": req.Password}); err != nil {
		writeError(w, err)
		return
	}

	exists, err := s.users.Exists(req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	if exists {
		writeError(w, users.ErrUserExists)
		return
	}

	if err := s.users.Create(req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "User registered successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := requireFields(map[string]string{"username": req.Username, "password": req.Password}); err != nil {
		writeError(w, err)
		return
	}

	if err := s.users.Verify(req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	sessions, err := s.users.Sessions(req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Message: "Login successful", Sessions: sessions})
}

func (s *Server) handleSubmitID(w http.ResponseWriter, r *http.Request) {
	var req submitIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := requireFields(map[string]string{"username": req.Username, "session_id": req.SessionID}); err != nil {
		writeError(w, err)
		return
	}

	sessionID, err := history.NormalizeSessionID(req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.users.AddSession(req.Username, sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Session ID submitted successfully"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		writeError(w, types.ValidationError{Field: "files", Message: fmt.Sprintf("invalid multipart form: %v", err)})
		return
	}
	defer r.MultipartForm.RemoveAll()

	docs, err := readUploadedFiles(r.MultipartForm)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.service.Upload(r.Context(), r.FormValue("session_id"), docs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:   "PDFs processed successfully",
		SessionID: result.SessionID,
		Documents: result.Documents,
		Chunks:    result.Chunks,
	})
}

func readUploadedFiles(form *multipart.Form) ([]models.Document, error) {
	var docs []models.Document
	for _, field := range uploadFields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
			}
			docs = append(docs, models.Document{Name: fh.Filename, Content: data})
		}
	}
	return docs, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	answer, err := s.service.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: answer})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.service.History(r.Context(), r.PathValue("session_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{History: turns})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func requireFields(fields map[string]string) error {
	for _, name := range []string{"username", "password", "session_id"} {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) == "" {
			return types.ValidationError{Field: name, Message: name + " is required"}
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var verr types.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, users.ErrUserExists):
		return http.StatusBadRequest
	case errors.Is(err, users.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, types.ErrSessionNotInitialized),
		errors.Is(err, types.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrNoExtractableText):
		return http.StatusUnprocessableEntity
	case types.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("Internal error: %v", err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
