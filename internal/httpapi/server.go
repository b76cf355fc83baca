package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mzampetti/complybot/internal/config"
	"github.com/mzampetti/complybot/internal/dialogue"
	"github.com/mzampetti/complybot/internal/document"
	"github.com/mzampetti/complybot/internal/observability"
)

type Server struct {
	cfg      config.Config
	sessions *dialogue.Manager
	engine   *dialogue.Engine
	metrics  *observability.Metrics
	auth     Authenticator
	upgrader websocket.Upgrader
}

func New(cfg config.Config, sessions *dialogue.Manager, engine *dialogue.Engine, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		engine:   engine,
		metrics:  metrics,
		auth:     NewTokenAuth(cfg.AuthToken, cfg.LoginURL),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections by default, so another
				// site cannot drive a user's intake session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Post("/v1/chat/session", s.handleCreateSession)
		r.Post("/v1/chat/session/{id}/end", s.handleEndSession)
		r.Get("/v1/chat/session/ws", s.handleSessionWS)
		r.Get("/v1/chat/session/{id}/transcript", s.handleTranscript)
		r.Get("/v1/chat/session/{id}/responses", s.handleResponses)
		r.Get("/v1/chat/session/{id}/document", s.handleDocumentDownload)
		r.Get("/v1/chat/session/{id}/document/text", s.handleDocumentText)
		r.Get("/v1/chat/session/{id}/document/email", s.handleDocumentEmail)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type createSessionResponse struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	Status          string    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	sess := s.sessions.Create(r.Context(), req.UserID)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          string(sess.Status()),
		StartedAt:       sess.StartedAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"status":     string(sess.Status()),
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var out any
	sess.Do(func() {
		out = sess.Transcript.Messages()
	})
	respondJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var out any
	var degraded bool
	sess.Do(func() {
		out = sess.Recorder.All()
		degraded = sess.Recorder.Degraded()
	})
	respondJSON(w, http.StatusOK, map[string]any{"responses": out, "degraded": degraded})
}

// assembleFor builds the export text. Download, copy, and email all come
// through here, so the three exports are byte-identical for a given state.
func (s *Server) assembleFor(sess *dialogue.Session, doc document.Type) string {
	var text string
	sess.Do(func() {
		text = document.Assemble(doc, sess.Record, sess.Recorder.All())
	})
	s.metrics.DocumentsAssembled.WithLabelValues(string(doc)).Inc()
	return text
}

func (s *Server) handleDocumentDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	doc, ok := docParam(w, r, sess)
	if !ok {
		return
	}
	text := s.assembleFor(sess, doc)

	filename := "privacy-policy.txt"
	if doc == document.TypeTerms {
		filename = "terms-of-use.txt"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleDocumentText(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	doc, ok := docParam(w, r, sess)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"doc":  string(doc),
		"text": s.assembleFor(sess, doc),
	})
}

func (s *Server) handleDocumentEmail(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	doc, ok := docParam(w, r, sess)
	if !ok {
		return
	}
	text := s.assembleFor(sess, doc)

	subject := "Privacy Policy"
	if doc == document.TypeTerms {
		subject = "Terms of Use"
	}
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	mailto := "mailto:" + url.PathEscape(to) +
		"?subject=" + url.QueryEscape(subject) +
		"&body=" + url.QueryEscape(text)
	respondJSON(w, http.StatusOK, map[string]any{
		"doc":    string(doc),
		"mailto": mailto,
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*dialogue.Session, bool) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return nil, false
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return nil, false
	}
	return sess, true
}

func docParam(w http.ResponseWriter, r *http.Request, sess *dialogue.Session) (document.Type, bool) {
	switch strings.TrimSpace(r.URL.Query().Get("doc")) {
	case "", "privacy":
		if r.URL.Query().Get("doc") == "" {
			// Default to the document the session was working on.
			var doc document.Type
			sess.Do(func() {
				if sess.Flow != nil && sess.Flow.Doc != "" {
					doc = sess.Flow.Doc
				}
			})
			if doc != "" {
				return doc, true
			}
		}
		return document.TypePrivacy, true
	case "terms":
		return document.TypeTerms, true
	default:
		respondError(w, http.StatusBadRequest, "invalid_doc", "doc must be privacy or terms")
		return "", false
	}
}

type errorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	LoginURL string `json:"login_url,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
