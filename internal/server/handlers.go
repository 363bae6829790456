package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-overlay/internal/app"
	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

const maxBodyBytes = 1 << 20

func (s *Server) routes() {
	r := s.Router

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(TokenMiddleware(s.token))

		r.Get("/overlay", s.handleOverlayState)
		r.Post("/overlay/toggle", s.handleOverlayToggle)
		r.Post("/overlay/resize", s.handleOverlayResize)

		r.Get("/clipboard", s.handleClipboardRead)
		r.Put("/clipboard", s.handleClipboardWrite)

		r.Get("/models", s.handleModels)
		r.Post("/complete", s.handleComplete)

		r.Get("/shortcut", s.handleShortcutGet)
		r.Put("/shortcut", s.handleShortcutSet)
		r.Delete("/shortcut", s.handleShortcutReset)

		r.Get("/autostart", s.handleAutostartStatus)
		r.Post("/autostart/enable", s.handleAutostartEnable)
		r.Post("/autostart/disable", s.handleAutostartDisable)

		r.Get("/history", s.handleHistory)
		r.Post("/tokens", s.handleTokens)

		r.Post("/events/{event}", s.handleEvent)
	})
}

// ErrorResponse is the envelope for failed commands.
type ErrorResponse struct {
	Error *domain.Error `json:"error"`
}

type ShortcutResponse struct {
	Shortcut string `json:"shortcut"`
	Source   string `json:"source,omitempty"`
	Bound    bool   `json:"bound"`
}

type AutostartResponse struct {
	Enabled bool `json:"enabled"`
}

type TextResponse struct {
	Text string `json:"text"`
}

type TokensRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type TokensResponse struct {
	Model  string `json:"model"`
	Tokens int    `json:"tokens"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOverlayState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.OverlayState())
}

func (s *Server) handleOverlayToggle(w http.ResponseWriter, r *http.Request) {
	visible, err := s.app.ToggleOverlay()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"visible": visible})
}

func (s *Server) handleOverlayResize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Height float64 `json:"height"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.app.ResizeOverlay(body.Height); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClipboardRead(w http.ResponseWriter, r *http.Request) {
	text, err := s.app.ReadClipboard()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TextResponse{Text: text})
}

func (s *Server) handleClipboardWrite(w http.ResponseWriter, r *http.Request) {
	var body TextResponse
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.app.WriteClipboard(body.Text); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.app.ListModels(r.Context(), bearerToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": models})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req app.CompleteTextRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.APIKey == nil {
		req.APIKey = bearerToken(r)
	}
	AddLogField(r.Context(), "action", req.Action)

	text, err := s.app.CompleteText(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TextResponse{Text: text})
}

func (s *Server) shortcutResponse() ShortcutResponse {
	if b, ok := s.app.ShortcutBinding(); ok {
		return ShortcutResponse{Shortcut: b.Raw, Source: string(b.Source), Bound: true}
	}
	return ShortcutResponse{Shortcut: s.app.GetShortcut()}
}

func (s *Server) handleShortcutGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.shortcutResponse())
}

func (s *Server) handleShortcutSet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Shortcut string `json:"shortcut"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.app.SetShortcut(r.Context(), body.Shortcut); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.shortcutResponse())
}

func (s *Server) handleShortcutReset(w http.ResponseWriter, r *http.Request) {
	if err := s.app.ResetShortcut(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.shortcutResponse())
}

func (s *Server) handleAutostartStatus(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.app.IsAutostartEnabled()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AutostartResponse{Enabled: enabled})
}

func (s *Server) handleAutostartEnable(w http.ResponseWriter, r *http.Request) {
	if err := s.app.EnableAutostart(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AutostartResponse{Enabled: true})
}

func (s *Server) handleAutostartDisable(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DisableAutostart(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AutostartResponse{Enabled: false})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, domain.ErrInvalidRequest("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := s.app.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	var req TokensRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.app.EstimateTokens(req.Model, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokensResponse{Model: req.Model, Tokens: n})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "event")
	ev, ok := app.ParseEvent(name)
	if !ok {
		s.writeError(w, r, domain.ErrInvalidRequest("unknown event: "+name))
		return
	}
	AddLogField(r.Context(), "event", name)

	if !s.app.Dispatch(r.Context(), ev) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"queued": false})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

// bearerToken returns the Authorization bearer value, or nil when the header
// is absent so the configured key applies.
func bearerToken(r *http.Request) *string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return nil
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return &token
}

// decode requires a JSON content type so that browser "simple" requests
// (text/plain forms) cannot carry a command body.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		s.writeError(w, r, domain.ErrInvalidRequest("Content-Type must be application/json"))
		return false
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		msg := "invalid JSON body: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		s.writeError(w, r, domain.ErrInvalidRequest(msg))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	de, ok := domain.AsError(err)
	if !ok {
		de = domain.NewError("internal", err.Error())
	}
	AddLogField(r.Context(), "error_kind", string(de.Kind))

	writeJSON(w, de.HTTPStatusCode(), ErrorResponse{Error: de})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
