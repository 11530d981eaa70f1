package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pbaille/helpdesk/internal/desk"
	"github.com/pbaille/helpdesk/internal/domain"
	"github.com/pbaille/helpdesk/internal/filter"
	"github.com/pbaille/helpdesk/internal/helpdesk"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const maxBodyBytes = 1 << 20

// markdown is shared across requests; Convert keeps per-call state only
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Server handles HTTP requests for the help desk API
type Server struct {
	hd              *helpdesk.Helpdesk
	addr            string
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// New creates a new API server
func New(hd *helpdesk.Helpdesk, addr string, shutdownTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{hd: hd, addr: addr, shutdownTimeout: shutdownTimeout, logger: logger}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Tickets
	mux.HandleFunc("GET /tickets", s.listTickets)
	mux.HandleFunc("POST /tickets", s.createTicket)
	mux.HandleFunc("GET /tickets/{id}", s.getTicket)
	mux.HandleFunc("PUT /tickets/{id}", s.updateTicket)
	mux.HandleFunc("DELETE /tickets/{id}", s.deleteTicket)
	mux.HandleFunc("POST /tickets/{id}/messages", s.replyTicket)
	mux.HandleFunc("GET /tickets/{id}/suggestions", s.suggestArticles)

	// Knowledge base
	mux.HandleFunc("GET /articles", s.listArticles)
	mux.HandleFunc("POST /articles", s.createArticle)
	mux.HandleFunc("POST /articles/import", s.importArticle)
	mux.HandleFunc("GET /articles/{id}", s.getArticle)
	mux.HandleFunc("GET /articles/{id}/html", s.articleHTML)
	mux.HandleFunc("PUT /articles/{id}", s.updateArticle)
	mux.HandleFunc("DELETE /articles/{id}", s.deleteArticle)

	// Settings
	mux.HandleFunc("GET /settings", s.getSettings)
	mux.HandleFunc("PUT /settings", s.putSettings)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withRequestLog(s.logger, withCORS(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("http server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	tickets := s.hd.Tickets.Snapshot().Status
	articles := s.hd.Articles.Snapshot().Status
	status := http.StatusOK
	if tickets == desk.Failed || articles == desk.Failed {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":   "ok",
		"tickets":  tickets,
		"articles": articles,
	})
}

// Tickets

func (s *Server) listTickets(w http.ResponseWriter, r *http.Request) {
	records, err := loaded(s.hd.Tickets)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	q := r.URL.Query()
	pred := filter.And(filter.Status(q.Get("status")), filter.Priority(q.Get("priority")))
	tickets := filter.Apply(records, q.Get("q"), pred)

	writeJSON(w, http.StatusOK, map[string]any{
		"tickets": tickets,
		"count":   len(tickets),
		"total":   len(records),
	})
}

func (s *Server) createTicket(w http.ResponseWriter, r *http.Request) {
	var form domain.TicketForm
	if err := readJSON(w, r, &form); err != nil {
		s.writeErr(w, r, err)
		return
	}
	snap, err := s.hd.Tickets.Commit(nil, func(f *domain.TicketForm) { *f = form })
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap.Selected)
}

func (s *Server) getTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	snap, err := s.hd.Tickets.Select(id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Selected)
}

func (s *Server) updateTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	patch, err := readPatch[domain.TicketForm](w, r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	snap, err := s.hd.Tickets.Commit(&id, patch)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Selected)
}

func (s *Server) deleteTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if _, err := s.hd.Tickets.Delete(id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplyRequest is the request body for adding a message to a ticket
type ReplyRequest struct {
	Author  string `json:"author,omitempty"`
	Message string `json:"message"`
}

func (s *Server) replyTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var req ReplyRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	t, err := s.hd.Reply(id, req.Author, req.Message)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) suggestArticles(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	suggestions, err := s.hd.Suggest(id, limit)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket_id":   id,
		"suggestions": suggestions,
	})
}

// Knowledge base

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	records, err := loaded(s.hd.Articles)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	q := r.URL.Query()
	articles := filter.Apply(records, q.Get("q"), filter.Category(q.Get("category")))

	writeJSON(w, http.StatusOK, map[string]any{
		"articles": articles,
		"count":    len(articles),
		"total":    len(records),
	})
}

func (s *Server) createArticle(w http.ResponseWriter, r *http.Request) {
	var form domain.ArticleForm
	if err := readJSON(w, r, &form); err != nil {
		s.writeErr(w, r, err)
		return
	}
	snap, err := s.hd.Articles.Commit(nil, func(f *domain.ArticleForm) { *f = form })
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap.Selected)
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	snap, err := s.hd.Articles.Select(id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Selected)
}

// articleHTML renders the article body as HTML. Rendering is a preview
// and does not count as a view.
func (s *Server) articleHTML(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	a, err := s.hd.Articles.Get(id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(a.Content), &buf); err != nil {
		s.writeErr(w, r, fmt.Errorf("render article %d: %w", id, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) updateArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	patch, err := readPatch[domain.ArticleForm](w, r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	snap, err := s.hd.Articles.Commit(&id, patch)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Selected)
}

func (s *Server) deleteArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if _, err := s.hd.Articles.Delete(id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportRequest is the request body for importing a web page
type ImportRequest struct {
	URL      string `json:"url"`
	Category string `json:"category"`
	Tags     string `json:"tags,omitempty"`
}

func (s *Server) importArticle(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	a, err := s.hd.Import(r.Context(), req.URL, req.Category, req.Tags)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Settings

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.hd.Settings()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.hd.Settings()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	// fields missing from the body keep their current value
	if err := readJSON(w, r, &prefs); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.hd.SaveSettings(prefs); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// loaded returns the desk's records, or why they are unavailable
func loaded[R desk.Record, F any](d *desk.Desk[R, F]) ([]R, error) {
	snap := d.Snapshot()
	switch snap.Status {
	case desk.Ready:
		return snap.Records, nil
	case desk.Failed:
		return nil, snap.Err
	default:
		return nil, desk.ErrNotReady
	}
}

var errBadRequest = errors.New("bad request")

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", r.PathValue("id"), errBadRequest)
	}
	return id, nil
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", errBadRequest)
	}
	return nil
}

// readPatch reads a partial form. Fields absent from the body keep the
// value of the record being edited.
func readPatch[F any](w http.ResponseWriter, r *http.Request) (func(*F), error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", errBadRequest)
	}
	var probe F
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", errBadRequest)
	}
	return func(f *F) {
		// body already decoded once into the same type
		_ = json.Unmarshal(body, f)
	}, nil
}

// statusOf maps domain errors to HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransport), errors.Is(err, desk.ErrNotReady), errors.Is(err, desk.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeErr reports err to the client along with the request id
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := map[string]any{"error": err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	id, _ := requestID(r.Context())
	if id != "" {
		body["request_id"] = id
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", id, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}
