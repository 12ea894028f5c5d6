package hub

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/operator-board/internal/picker"
	"github.com/DoyleJ11/operator-board/internal/session"
	"github.com/DoyleJ11/operator-board/internal/store"
	"go.uber.org/zap"
)

// stateTimeout bounds how long an eviction check waits on a busy session.
const stateTimeout = time.Second

type HubMsg interface{ isHubMsg() }

// EnsureSession returns the profile's session, restoring its board from the
// store on first use.
type EnsureSession struct {
	Profile string
	Reply   chan *session.Session
}

// ReleaseSession evicts the profile's session if no client is attached.
// The kept profile is never evicted. Every mutation is saved before it is
// acknowledged, so an evicted session has nothing to flush.
type ReleaseSession struct {
	Profile string
}

type CountSessions struct {
	Reply chan int
}

type ShutdownHub struct{}

func (EnsureSession) isHubMsg()  {}
func (ReleaseSession) isHubMsg() {}
func (CountSessions) isHubMsg()  {}
func (ShutdownHub) isHubMsg()    {}

type Options struct {
	// KeepProfile stays open for the life of the hub.
	KeepProfile string
	// IdleTimeout evicts sessions that have had no client and no activity
	// for this long. Zero disables the sweep.
	IdleTimeout time.Duration
}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	kv       store.KV
	roster   picker.Roster
	opts     Options
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(parent context.Context, kv store.KV, r picker.Roster, opts Options, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		kv:       kv,
		roster:   r,
		opts:     opts,
		logger:   logger.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub and all its sessions have stopped.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)

	var sweep <-chan time.Time
	if h.opts.IdleTimeout > 0 {
		ticker := time.NewTicker(max(h.opts.IdleTimeout/2, time.Millisecond))
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case <-sweep:
			for profile, s := range h.sessions {
				if h.idle(profile, s, h.opts.IdleTimeout) {
					h.evict(profile, s, "idle")
				}
			}

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureSession:
				if s := h.sessions[msg.Profile]; s != nil {
					msg.Reply <- s
					break
				}
				msg.Reply <- h.open(msg.Profile)

			case ReleaseSession:
				if s := h.sessions[msg.Profile]; s != nil && h.idle(msg.Profile, s, 0) {
					h.evict(msg.Profile, s, "released")
				}

			case CountSessions:
				msg.Reply <- len(h.sessions)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) open(profile string) *session.Session {
	logger := h.logger.With(zap.String("profile", profile))
	b := session.Restore(h.ctx, store.Namespace(h.kv, profile), logger)
	s := session.New(h.ctx, profile, b, h.roster, h.logger)
	h.sessions[profile] = s
	logger.Info("session opened", zap.Int("filled", b.Filled()))
	return s
}

// idle reports whether s may be evicted: not the kept profile, no clients,
// and quiet for at least d. A session that already stopped counts as idle.
func (h *Hub) idle(profile string, s *session.Session, d time.Duration) bool {
	if profile == h.opts.KeepProfile {
		return false
	}
	ctx, cancel := context.WithTimeout(h.ctx, stateTimeout)
	defer cancel()
	view, err := s.State(ctx)
	if err != nil {
		return errors.Is(err, session.ErrClosed)
	}
	return view.NumClients == 0 && time.Since(view.LastActive) >= d
}

func (h *Hub) evict(profile string, s *session.Session, reason string) {
	s.Stop()
	delete(h.sessions, profile)
	h.logger.Info("session evicted", zap.String("profile", profile), zap.String("reason", reason))
}

func (h *Hub) shutdown() {
	for profile, s := range h.sessions {
		s.Stop()
		delete(h.sessions, profile)
	}
	h.cancel()
}

// Ensure is EnsureSession as a call. It returns nil once the hub has stopped.
func (h *Hub) Ensure(ctx context.Context, profile string) *session.Session {
	reply := make(chan *session.Session, 1)
	select {
	case h.inbox <- EnsureSession{Profile: profile, Reply: reply}:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case s := <-reply:
		return s
	case <-h.done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Release asks the hub to evict the profile's session once its last client
// has gone. It does not wait for the outcome.
func (h *Hub) Release(profile string) {
	select {
	case h.inbox <- ReleaseSession{Profile: profile}:
	case <-h.done:
	}
}

// Sessions counts the open sessions, or returns -1 once the hub has stopped.
func (h *Hub) Sessions(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.inbox <- CountSessions{Reply: reply}:
	case <-h.done:
		return -1
	case <-ctx.Done():
		return -1
	}
	select {
	case n := <-reply:
		return n
	case <-h.done:
		return -1
	case <-ctx.Done():
		return -1
	}
}

// Stop shuts the hub down and waits for every session to exit.
func (h *Hub) Stop() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}
