package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shiftbook/internal/config"
	"shiftbook/internal/ics"
	appLog "shiftbook/internal/log"
	"shiftbook/internal/model"
	"shiftbook/internal/session"
	"shiftbook/internal/shiftapi"
	"shiftbook/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server is the web shell: HTML pages for both tabs, JSON views and the
// book/cancel endpoints over one Session.
type Server struct {
	cfg  *config.Config
	sess *session.Session
	tmpl *template.Template
	mux  *http.ServeMux
	now  func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, sess *session.Session) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:  cfg,
		sess: sess,
		tmpl: tmpl,
		mux:  http.NewServeMux(),
		now:  time.Now,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="shiftbook", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /{$}", s.handleMinePage)
	s.mux.HandleFunc("GET /available", s.handleAvailablePage)
	s.mux.HandleFunc("POST /shifts/{id}/book", s.handleFormMutation(s.sess.Book))
	s.mux.HandleFunc("POST /shifts/{id}/cancel", s.handleFormMutation(s.sess.Cancel))

	s.mux.HandleFunc("GET /api/views/mine", s.handleMineJSON)
	s.mux.HandleFunc("GET /api/views/available", s.handleAvailableJSON)
	s.mux.HandleFunc("POST /api/shifts/{id}/book", s.handleAPIMutation(s.sess.Book))
	s.mux.HandleFunc("POST /api/shifts/{id}/cancel", s.handleAPIMutation(s.sess.Cancel))
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /my-shifts.ics", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// pageData is what the page templates render.
type pageData struct {
	Title     string
	Tab       string
	Error     string
	Ready     bool
	Mine      *view.MyShiftsView
	Available *view.AvailableView
}

// handleMinePage loads a fresh snapshot (the "mount" trigger) and renders
// the booked shifts. A failed load renders the last good snapshot.
func (s *Server) handleMinePage(w http.ResponseWriter, r *http.Request) {
	msg := r.URL.Query().Get("error")
	if err := s.sess.Load(r.Context()); err != nil && msg == "" {
		msg = "Could not refresh shifts."
	}

	v := s.sess.MyShiftsView()
	s.render(w, "mine", pageData{
		Title: "My Shifts",
		Tab:   "mine",
		Error: msg,
		Ready: !v.Loading,
		Mine:  &v,
	})
}

// handleAvailablePage applies ?city= (which reloads) or reloads for the
// current city, then renders the available shifts.
func (s *Server) handleAvailablePage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	msg := q.Get("error")

	var err error
	if city := q.Get("city"); city != "" {
		err = s.sess.SelectCity(r.Context(), city)
	} else {
		err = s.sess.Load(r.Context())
	}
	if err != nil && msg == "" {
		msg = "Could not refresh shifts."
	}

	v := s.sess.AvailableView()
	s.render(w, "available", pageData{
		Title:     "Available Shifts",
		Tab:       "available",
		Error:     msg,
		Ready:     !v.Loading,
		Available: &v,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		appLog.Error("template render failed", err, "template", name)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleFormMutation runs a book/cancel from an HTML form and redirects back
// to the page named in the "back" field, with ?error= on failure.
func (s *Server) handleFormMutation(op func(context.Context, model.ID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := model.ID(r.PathValue("id"))
		back := safeBack(r.FormValue("back"))

		if err := op(r.Context(), id); err != nil {
			u, _ := url.Parse(back)
			q := u.Query()
			q.Set("error", userMessage(err))
			u.RawQuery = q.Encode()
			back = u.String()
		}
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

// safeBack only allows redirects to the two local pages.
func safeBack(v string) string {
	if v == "/available" || strings.HasPrefix(v, "/available?") {
		return "/available"
	}
	return "/"
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrBusy):
		return "Another request is still in progress."
	case errors.Is(err, session.ErrUnknownShift):
		return "That shift no longer exists."
	default:
		return "The request failed. Please try again."
	}
}

func (s *Server) handleMineJSON(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.MyShiftsView())
}

func (s *Server) handleAvailableJSON(w http.ResponseWriter, r *http.Request) {
	if city := r.URL.Query().Get("city"); city != "" && city != s.sess.City() {
		if err := s.sess.SelectCity(r.Context(), city); err != nil {
			appLog.Error("api available: reload after city change failed", err, "city", city)
		}
	}
	writeJSON(w, http.StatusOK, s.sess.AvailableView())
}

type mutationResponse struct {
	ID string `json:"id"`
	OK bool   `json:"ok"`
}

func (s *Server) handleAPIMutation(op func(context.Context, model.ID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := model.ID(r.PathValue("id"))
		if err := op(r.Context(), id); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, mutationResponse{ID: string(id), OK: true})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrUnknownShift):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, shiftapi.ErrMutation), errors.Is(err, shiftapi.ErrFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.Load(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(s.sess.Snapshot()),
		"loaded_at": s.sess.LastLoad(),
	})
}

// handleCalendar serves the booked shifts of the current snapshot as ICS.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	if !s.sess.Loaded() {
		writeError(w, http.StatusServiceUnavailable, "shifts not loaded yet")
		return
	}
	body := ics.EncodeBooked(s.sess.Snapshot(), s.cfg.CalendarName, s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="my-shifts.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
