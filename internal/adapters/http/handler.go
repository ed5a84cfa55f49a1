// Package httpadapter exposes the crop-diagnosis domain over HTTP.
package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Shivaya007/CROP-AI/internal/app/chat"
	"github.com/Shivaya007/CROP-AI/internal/app/diagnosis"
	"github.com/Shivaya007/CROP-AI/internal/app/news"
	"github.com/Shivaya007/CROP-AI/internal/app/todo"
	"github.com/Shivaya007/CROP-AI/internal/domain"
)

const maxImageBytes = 10 << 20

type Server struct {
	diagnoses *diagnosis.Service
	chats     *chat.Manager
	todos     *todo.Service
	news      *news.Service
	identity  domain.Identity
}

func NewServer(
	diagnoses *diagnosis.Service,
	chats *chat.Manager,
	todos *todo.Service,
	newsSvc *news.Service,
	identity domain.Identity,
) http.Handler {
	s := &Server{
		diagnoses: diagnoses,
		chats:     chats,
		todos:     todos,
		news:      newsSvc,
		identity:  identity,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(withRequestID)
	r.Use(withLogging)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.withAuth)

		r.Route("/diagnoses", func(r chi.Router) {
			r.Post("/", s.handleCreateDiagnosis)
			r.Get("/", s.handleListDiagnoses)

			r.Route("/{recordID}", func(r chi.Router) {
				r.Get("/", s.handleGetDiagnosis)
				r.Get("/messages", s.handleListMessages)
				r.Get("/messages/stream", s.handleStreamMessages)
				r.Post("/messages", s.handleSendMessage)
				r.Get("/todos", s.handleListTodos)
				r.Patch("/todos/{sequence}", s.handleUpdateTodo)
			})
		})

		r.Get("/news", s.handleNews)

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", s.handleGetProfile)
			r.Patch("/", s.handleUpdateProfile)
			r.Post("/verify-email", s.handleVerifyEmail)
		})
	})

	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type diagnosisResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ImageURL  string    `json:"image_url"`
	AIText    string    `json:"ai_text"`
	Heading   string    `json:"heading,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type taskResponse struct {
	Sequence    int    `json:"sequence"`
	DayLabel    string `json:"day_label"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
}

type messageResponse struct {
	ID     string    `json:"id"`
	Role   string    `json:"role"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

type createDiagnosisResponse struct {
	Diagnosis diagnosisResponse `json:"diagnosis"`
	Tasks     []taskResponse    `json:"tasks"`
}

type getDiagnosisResponse struct {
	Diagnosis diagnosisResponse `json:"diagnosis"`
	Messages  []messageResponse `json:"messages"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	UserMessage      messageResponse `json:"user_message"`
	AssistantMessage messageResponse `json:"assistant_message"`
}

type updateTodoRequest struct {
	Done bool `json:"done"`
}

type profileResponse struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateDiagnosis(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		badRequest(w, "invalid multipart body")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		badRequest(w, "title is required")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		badRequest(w, "image is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		badRequest(w, "could not read image")
		return
	}
	if len(data) > maxImageBytes {
		badRequest(w, "image too large")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	out, err := s.diagnoses.Analyze(r.Context(), diagnosis.AnalyzeInput{
		UserID:     user.ID,
		Title:      title,
		ImageBytes: data,
		MIMEType:   mimeType,
	})
	if err != nil {
		upstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createDiagnosisResponse{
		Diagnosis: toDiagnosisResponse(out.Record),
		Tasks:     toTasksResponse(out.Tasks),
	})
}

func (s *Server) handleListDiagnoses(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	records, err := s.diagnoses.List(r.Context(), user.ID, queryInt(r, "limit", 0))
	if err != nil {
		upstreamError(w, err)
		return
	}

	out := make([]diagnosisResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toDiagnosisResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"diagnoses": out})
}

func (s *Server) handleGetDiagnosis(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	recordID := domain.RecordID(chi.URLParam(r, "recordID"))

	record, msgs, err := s.diagnoses.Timeline(r.Context(), user.ID, recordID, 0)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w)
			return
		}
		upstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, getDiagnosisResponse{
		Diagnosis: toDiagnosisResponse(record),
		Messages:  toMessagesResponse(msgs),
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	recordID := domain.RecordID(chi.URLParam(r, "recordID"))

	_, msgs, err := s.diagnoses.Timeline(r.Context(), user.ID, recordID, queryInt(r, "limit", 0))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w)
			return
		}
		upstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": toMessagesResponse(msgs)})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	recordID := domain.RecordID(chi.URLParam(r, "recordID"))

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	// The thread must exist under this user's scope.
	if _, err := s.diagnoses.Get(r.Context(), user.ID, recordID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w)
			return
		}
		upstreamError(w, err)
		return
	}

	out, err := s.chats.Session(user.ID, recordID).Submit(r.Context(), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			badRequest(w, "text is required")
		case errors.Is(err, chat.ErrBusy):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "a message is already in flight for this thread",
			})
		default:
			upstreamError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		UserMessage:      toMessageResponse(out.UserMessage),
		AssistantMessage: toMessageResponse(out.AssistantMessage),
	})
}

// handleStreamMessages streams the ordered message log as server-sent
// events: one full snapshot per change, starting with the current log.
func (s *Server) handleStreamMessages(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	recordID := domain.RecordID(chi.URLParam(r, "recordID"))

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	sub, err := s.diagnoses.WatchMessages(r.Context(), user.ID, recordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w)
			return
		}
		upstreamError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msgs, open := <-sub.Updates():
			if !open {
				return
			}
			payload, err := json.Marshal(map[string]any{"messages": toMessagesResponse(msgs)})
			if err != nil {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	recordID := domain.RecordID(chi.URLParam(r, "recordID"))

	tasks, err := s.todos.List(r.Context(), user.ID, recordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w)
			return
		}
		upstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"todos": toTasksResponse(tasks)})
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	recordID := domain.RecordID(chi.URLParam(r, "recordID"))

	sequence, err := strconv.Atoi(chi.URLParam(r, "sequence"))
	if err != nil || sequence < 1 {
		badRequest(w, "invalid task sequence")
		return
	}

	var req updateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if err := s.todos.SetDone(r.Context(), user.ID, recordID, sequence, req.Done); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w)
			return
		}
		upstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sequence": sequence, "done": req.Done})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	articles, err := s.news.Fetch(r.Context(), queryInt(r, "offset", 0), queryInt(r, "count", 10))
	if err != nil {
		upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	writeJSON(w, http.StatusOK, toProfileResponse(user))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		badRequest(w, "display_name is required")
		return
	}

	updated, err := s.identity.UpdateDisplayName(r.Context(), user.ID, strings.TrimSpace(req.DisplayName))
	if err != nil {
		upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(updated))
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	if user.EmailVerified {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already verified"})
		return
	}

	link, err := s.identity.EmailVerificationLink(r.Context(), user.Email)
	if err != nil {
		upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"verification_link": link})
}

// ─────────────────────────────────────────────
// Mapping helpers
// ─────────────────────────────────────────────

func toDiagnosisResponse(rec *domain.DiagnosisRecord) diagnosisResponse {
	return diagnosisResponse{
		ID:        string(rec.ID),
		Title:     rec.Title,
		ImageURL:  rec.ImageURL,
		AIText:    rec.RawAIText,
		Heading:   rec.Heading,
		CreatedAt: rec.CreatedAt,
	}
}

func toTasksResponse(tasks []*domain.TaskItem) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse{
			Sequence:    t.Sequence,
			DayLabel:    t.DayLabel,
			Description: t.Description,
			Done:        t.Done,
		})
	}
	return out
}

func toMessageResponse(m *domain.ChatMessage) messageResponse {
	return messageResponse{
		ID:     string(m.ID),
		Role:   string(m.Role),
		Text:   m.Text,
		SentAt: m.SentAt,
	}
}

func toMessagesResponse(msgs []*domain.ChatMessage) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toProfileResponse(u *domain.User) profileResponse {
	return profileResponse{
		ID:            string(u.ID),
		DisplayName:   u.DisplayName,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error": msg,
	})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
	})
}

// upstreamError reports a transient provider failure; the client can
// retry the request.
func upstreamError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadGateway, map[string]string{
		"error": err.Error(),
	})
}
