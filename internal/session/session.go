package session

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/operator-board/internal/board"
	"github.com/DoyleJ11/operator-board/internal/picker"
	"github.com/DoyleJ11/operator-board/internal/roster"
	"go.uber.org/zap"
)

type Msg interface{ isSessionMsg() }

// FromClient carries one board command. Reply, when set, receives the result.
type FromClient struct {
	Cmd   board.Command
	Reply chan error
}

func (FromClient) isSessionMsg() {}

type OpenPicker struct {
	Team  int
	Slot  int
	Reply chan error
}

func (OpenPicker) isSessionMsg() {}

// QueryPicker runs one live keystroke query against the roster.
type QueryPicker struct {
	Query string
	Reply chan PickerView
}

func (QueryPicker) isSessionMsg() {}

type SelectOperator struct {
	Name  string
	Reply chan error
}

func (SelectOperator) isSessionMsg() {}

type ClosePicker struct {
	Reply chan error
}

func (ClosePicker) isSessionMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isSessionMsg() {}

type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type PickerView struct {
	Open    bool              `json:"open"`
	Target  *picker.Target    `json:"target,omitempty"`
	Query   string            `json:"query"`
	Results []roster.Operator `json:"results,omitempty"`
}

type Snapshot struct {
	Version int
	Teams   board.Teams
	Picker  PickerView
}

type View struct {
	Version    int
	NumClients int
	Teams      board.Teams
	Picker     PickerView
	// LastActive is when the session last handled anything but a state read.
	LastActive time.Time
}

// Session owns one team board and its picker. Every message is handled on
// the session goroutine, so neither needs locking.
type Session struct {
	profile string
	inbox   chan Msg
	board   *board.Board
	picker  *picker.Picker
	version int
	active  time.Time
	clients map[string]chan Snapshot
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(parent context.Context, profile string, b *board.Board, r picker.Roster, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		profile: profile,
		inbox:   make(chan Msg, 64),
		board:   b,
		picker:  picker.New(r),
		active:  time.Now(),
		clients: make(map[string]chan Snapshot),
		logger:  logger.Named("session").With(zap.String("profile", profile)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			if _, ok := m.(GetState); !ok {
				s.active = time.Now()
			}
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				s.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- s.snapshot()
				s.logger.Debug("client joined", zap.String("client", msg.ClientID), zap.Int("clients", len(s.clients)))

			case Leave:
				if ch, ok := s.clients[msg.ClientID]; ok {
					close(ch)
					delete(s.clients, msg.ClientID)
				}
				s.logger.Debug("client left", zap.String("client", msg.ClientID), zap.Int("clients", len(s.clients)))

			case FromClient:
				events, err := s.board.Apply(s.ctx, msg.Cmd)
				if err != nil {
					s.logFailure("command rejected", err, zap.String("command", string(msg.Cmd.Type)))
					reply(msg.Reply, err)
					break
				}
				for _, evt := range events {
					s.logger.Debug("board changed",
						zap.String("event", string(evt.Type)),
						zap.Int("team", evt.Team),
						zap.Int("slot", evt.Slot))
				}
				s.changed()
				reply(msg.Reply, nil)

			case OpenPicker:
				err := s.picker.Open(msg.Team, msg.Slot)
				if err == nil {
					s.changed()
				}
				reply(msg.Reply, err)

			case QueryPicker:
				results := s.picker.Search(msg.Query)
				v := s.pickerView()
				v.Results = results
				reply(msg.Reply, v)

			case SelectOperator:
				target, err := s.picker.Select(s.ctx, s.board, msg.Name)
				if err != nil {
					s.logFailure("selection rejected", err, zap.String("operator", msg.Name))
					reply(msg.Reply, err)
					break
				}
				s.logger.Debug("operator selected",
					zap.String("operator", msg.Name),
					zap.Int("team", target.Team),
					zap.Int("slot", target.Slot))
				s.changed()
				reply(msg.Reply, nil)

			case ClosePicker:
				if s.picker.IsOpen() {
					s.picker.Close()
					s.changed()
				}
				reply(msg.Reply, nil)

			case GetState:
				msg.Reply <- View{
					Version:    s.version,
					NumClients: len(s.clients),
					Teams:      s.board.Teams(),
					Picker:     s.pickerView(),
					LastActive: s.active,
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if errors.Is(err, board.ErrPersist) {
		s.logger.Error(msg, fields...)
		return
	}
	s.logger.Debug(msg, fields...)
}

func (s *Session) changed() {
	s.version++
	s.broadcast(s.snapshot())
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{Version: s.version, Teams: s.board.Teams(), Picker: s.pickerView()}
}

func (s *Session) pickerView() PickerView {
	v := PickerView{Query: s.picker.Query()}
	if target, ok := s.picker.Pending(); ok {
		v.Open = true
		v.Target = &target
	}
	return v
}

func (s *Session) shutdown() {
	for id, ch := range s.clients {
		close(ch) // Tell client no more snapshots
		delete(s.clients, id)
	}
	// Joins queued behind the shutdown never get registered; close their
	// outboxes too so no writer waits forever.
	for {
		select {
		case m := <-s.inbox:
			if j, ok := m.(Join); ok {
				close(j.Outbox)
			}
		default:
			s.cancel()
			return
		}
	}
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(s.clients, id)
			s.logger.Warn("dropped slow client", zap.String("client", id))
		}
	}
}

func reply[T any](ch chan T, v T) {
	if ch != nil {
		ch <- v
	}
}

// Inbox exposes the inbox so the HTTP and websocket layers can send messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Profile() string { return s.profile }
