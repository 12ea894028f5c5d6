package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/DoyleJ11/operator-board/internal/board"
	"github.com/DoyleJ11/operator-board/internal/hub"
	"github.com/DoyleJ11/operator-board/internal/picker"
	"github.com/DoyleJ11/operator-board/internal/release"
	"github.com/DoyleJ11/operator-board/internal/roster"
	"github.com/DoyleJ11/operator-board/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Options struct {
	LetterMode     roster.LetterMode
	DefaultProfile string
	StaticDir      string
}

type Server struct {
	hub     *hub.Hub
	roster  *roster.Holder
	opts    Options
	version atomic.Value // string
	logger  *zap.Logger
}

func NewServer(h *hub.Hub, r *roster.Holder, opts Options, logger *zap.Logger) *Server {
	if opts.LetterMode == "" {
		opts.LetterMode = roster.LetterFilter
	}
	s := &Server{hub: h, roster: r, opts: opts, logger: logger.Named("http")}
	s.version.Store("")
	return s
}

// SetVersion publishes the version label once the config source resolves.
func (s *Server) SetVersion(v string) { s.version.Store(v) }

// Healthz reports liveness and the number of open profile sessions.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	n := s.hub.Sessions(r.Context())
	if n < 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "stopping"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": n})
}

func (s *Server) Version(w http.ResponseWriter, r *http.Request) {
	v, _ := s.version.Load().(string)
	writeJSON(w, http.StatusOK, struct {
		Version string `json:"version,omitempty"`
		Label   string `json:"label,omitempty"`
	}{Version: v, Label: release.Label(v)})
}

type rosterResponse struct {
	Loaded bool           `json:"loaded"`
	Mode   string         `json:"mode"`
	Query  string         `json:"query"`
	Letter string         `json:"letter,omitempty"`
	Groups []roster.Group `json:"groups"`
}

// Roster answers the browsing view. In filter mode letter restricts the
// groups and toggle flips the active letter (pressing the active letter
// again clears it). In jump mode both are ignored.
func (s *Server) Roster(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	letter := s.activeLetter(r)
	if toggle := q.Get("toggle"); toggle != "" && s.opts.LetterMode == roster.LetterFilter {
		letter = roster.SelectLetter(letter).Toggle(toggle).Letter()
	}

	writeJSON(w, http.StatusOK, rosterResponse{
		Loaded: s.roster.Loaded(),
		Mode:   string(s.opts.LetterMode),
		Query:  q.Get("q"),
		Letter: letter,
		Groups: s.roster.Current().Filter(q.Get("q"), letter),
	})
}

func (s *Server) Letters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Targets map[string]bool `json:"targets"`
	}{Targets: s.roster.Current().JumpTargets(r.URL.Query().Get("q"), s.activeLetter(r))})
}

// Jump resolves a letter press. A letter with no rendered group is a no-op,
// reported as exists=false rather than an error.
func (s *Server) Jump(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "letter")
	anchor, ok := s.roster.Current().Jump(target, r.URL.Query().Get("q"), s.activeLetter(r))
	writeJSON(w, http.StatusOK, struct {
		Letter string `json:"letter"`
		Anchor string `json:"anchor,omitempty"`
		Exists bool   `json:"exists"`
	}{Letter: target, Anchor: anchor, Exists: ok})
}

func (s *Server) activeLetter(r *http.Request) string {
	if s.opts.LetterMode != roster.LetterFilter {
		return ""
	}
	return roster.SelectLetter(r.URL.Query().Get("letter")).Letter()
}

type teamsResponse struct {
	Profile string             `json:"profile"`
	Version int                `json:"version"`
	Teams   board.Teams        `json:"teams"`
	Picker  session.PickerView `json:"picker"`
}

func (s *Server) GetTeams(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, r)
}

func (s *Server) ResetTeams(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, func(r *http.Request) (board.Command, error) {
		return board.Command{Type: board.CmdReset}, nil
	})
}

func (s *Server) Assign(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, func(r *http.Request) (board.Command, error) {
		team, slot, err := slotParams(r)
		if err != nil {
			return board.Command{}, err
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := decode(r, &body); err != nil {
			return board.Command{}, err
		}
		op, ok := s.roster.Lookup(body.Name)
		if !ok {
			return board.Command{}, fmt.Errorf("%w: %q", picker.ErrUnknownOperator, body.Name)
		}
		return board.Command{Type: board.CmdAssign, Team: team, Slot: slot, Operator: board.RefOf(op)}, nil
	})
}

func (s *Server) SetEquipment(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, func(r *http.Request) (board.Command, error) {
		team, slot, err := slotParams(r)
		if err != nil {
			return board.Command{}, err
		}
		field, err := board.ParseField(chi.URLParam(r, "field"))
		if err != nil {
			return board.Command{}, err
		}
		var body struct {
			Value string `json:"value"`
		}
		if err := decode(r, &body); err != nil {
			return board.Command{}, err
		}
		return board.Command{Type: board.CmdSetEquipment, Team: team, Slot: slot, Field: field, Value: body.Value}, nil
	})
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, build func(*http.Request) (board.Command, error)) {
	cmd, err := build(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.call(r, func(sess *session.Session) error { return sess.Apply(r.Context(), cmd) }); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, r)
}

func (s *Server) OpenPicker(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Team *int `json:"team"`
		Slot *int `json:"slot"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.Team == nil || body.Slot == nil {
		s.writeError(w, fmt.Errorf("%w: team and slot are required", board.ErrIndex))
		return
	}
	if err := s.call(r, func(sess *session.Session) error { return sess.OpenPicker(r.Context(), *body.Team, *body.Slot) }); err != nil {
		s.writeError(w, err)
		return
	}
	s.queryPicker(w, r, "")
}

func (s *Server) QueryPicker(w http.ResponseWriter, r *http.Request) {
	s.queryPicker(w, r, r.URL.Query().Get("q"))
}

func (s *Server) queryPicker(w http.ResponseWriter, r *http.Request, q string) {
	var view session.PickerView
	err := s.call(r, func(sess *session.Session) error {
		var err error
		view, err = sess.QueryPicker(r.Context(), q)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if view.Results == nil {
		view.Results = []roster.Operator{}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) SelectOperator(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.call(r, func(sess *session.Session) error { return sess.SelectOperator(r.Context(), body.Name) }); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, r)
}

func (s *Server) ClosePicker(w http.ResponseWriter, r *http.Request) {
	if err := s.call(r, func(sess *session.Session) error { return sess.ClosePicker(r.Context()) }); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) profile(r *http.Request) string {
	if p := chi.URLParam(r, "profile"); p != "" {
		return p
	}
	return s.opts.DefaultProfile
}

// call runs fn against the request's profile session. The hub may evict an
// idle session between lookup and use; fn then sees ErrClosed and is retried
// once on a session freshly restored from the store.
func (s *Server) call(r *http.Request, fn func(*session.Session) error) error {
	err := session.ErrClosed
	for attempt := 0; attempt < 2 && errors.Is(err, session.ErrClosed); attempt++ {
		sess := s.hub.Ensure(r.Context(), s.profile(r))
		if sess == nil {
			return session.ErrClosed
		}
		err = fn(sess)
	}
	return err
}

func (s *Server) writeState(w http.ResponseWriter, r *http.Request) {
	var view session.View
	err := s.call(r, func(sess *session.Session) error {
		var err error
		view, err = sess.State(r.Context())
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teamsResponse{
		Profile: s.profile(r),
		Version: view.Version,
		Teams:   view.Teams,
		Picker:  view.Picker,
	})
}

var errBadRequest = errors.New("bad request")

func slotParams(r *http.Request) (int, int, error) {
	team, err := strconv.Atoi(chi.URLParam(r, "team"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: team %q", board.ErrIndex, chi.URLParam(r, "team"))
	}
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: slot %q", board.ErrIndex, chi.URLParam(r, "slot"))
	}
	return team, slot, nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, board.ErrIndex),
		errors.Is(err, board.ErrInvalidField),
		errors.Is(err, board.ErrUnsupportedCommand):
		return http.StatusBadRequest
	case errors.Is(err, picker.ErrUnknownOperator):
		return http.StatusNotFound
	case errors.Is(err, picker.ErrNoPendingTarget):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
