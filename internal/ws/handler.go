package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DoyleJ11/operator-board/internal/board"
	"github.com/DoyleJ11/operator-board/internal/hub"
	"github.com/DoyleJ11/operator-board/internal/picker"
	"github.com/DoyleJ11/operator-board/internal/session"
	"github.com/DoyleJ11/operator-board/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

var errUnknownType = errors.New("unknown type")

// Handler upgrades to a websocket bound to the profile's session, or
// defaultProfile when the query names none. The session pushes a
// StateSnapshot on join and after every change. When the last client of a
// profile disconnects the hub is asked to release its session.
func Handler(h *hub.Hub, r picker.Roster, defaultProfile string, logger *zap.Logger) http.HandlerFunc {
	logger = logger.Named("ws")
	return func(w http.ResponseWriter, req *http.Request) {
		profile := req.URL.Query().Get("profile")
		if profile == "" {
			profile = defaultProfile
		}

		if h.Ensure(req.Context(), profile) == nil {
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, req, nil)
		if err != nil {
			logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Snapshot, 8)
		clientID := uuid.NewString()
		log := logger.With(zap.String("client", clientID), zap.String("profile", profile))

		s := join(req.Context(), h, profile, clientID, out)
		if s == nil {
			conn.Close(websocket.StatusTryAgainLater, "session unavailable")
			return
		}
		log.Debug("client connected")

		writeCtx, writeCancel := context.WithCancel(req.Context())
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case snap, ok := <-out:
					if !ok {
						return
					}
					write(writeCtx, conn, types.SnapshotMessage(snap))
				case <-writeCtx.Done():
					return
				}
			}
		}()
		defer func() {
			writeCancel()
			s.Leave(clientID)
			<-writerDone
			h.Release(profile)
		}()

		for {
			ctx, cancel := context.WithTimeout(req.Context(), 5*time.Minute)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Debug("client disconnected")
					return
				}
				log.Debug("read failed", zap.Error(err))
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				write(req.Context(), conn, types.ErrorMessage(errors.New("bad json")))
				continue
			}

			if err := dispatch(req.Context(), conn, s, r, cm); err != nil {
				write(req.Context(), conn, types.ErrorMessage(err))
			}
		}
	}
}

// join attaches out to the profile's session. A session evicted between the
// lookup and the join is reopened once.
func join(ctx context.Context, h *hub.Hub, profile, clientID string, out chan session.Snapshot) *session.Session {
	for attempt := 0; attempt < 2; attempt++ {
		s := h.Ensure(ctx, profile)
		if s == nil {
			return nil
		}
		if s.Join(ctx, clientID, out) {
			return s
		}
	}
	return nil
}

func dispatch(ctx context.Context, conn *websocket.Conn, s *session.Session, r picker.Roster, m types.ClientMessage) error {
	switch m.Type {
	case "OpenPicker":
		team, slot, err := indices(m)
		if err != nil {
			return err
		}
		return s.OpenPicker(ctx, team, slot)
	case "QueryPicker":
		view, err := s.QueryPicker(ctx, m.Query)
		if err != nil {
			return err
		}
		write(ctx, conn, types.ServerMessage{Type: "PickerResults", Picker: &view})
		return nil
	case "SelectOperator":
		return s.SelectOperator(ctx, m.Name)
	case "ClosePicker":
		return s.ClosePicker(ctx)
	}

	cmd, err := toBoardCommand(m, r)
	if err != nil {
		return err
	}
	return s.Apply(ctx, cmd)
}

func toBoardCommand(m types.ClientMessage, r picker.Roster) (board.Command, error) {
	switch m.Type {
	case "Assign":
		team, slot, err := indices(m)
		if err != nil {
			return board.Command{}, err
		}
		op, ok := r.Lookup(m.Name)
		if !ok {
			return board.Command{}, fmt.Errorf("%w: %q", picker.ErrUnknownOperator, m.Name)
		}
		return board.Command{Type: board.CmdAssign, Team: team, Slot: slot, Operator: board.RefOf(op)}, nil
	case "SetEquipment":
		team, slot, err := indices(m)
		if err != nil {
			return board.Command{}, err
		}
		field, err := board.ParseField(m.Field)
		if err != nil {
			return board.Command{}, err
		}
		return board.Command{Type: board.CmdSetEquipment, Team: team, Slot: slot, Field: field, Value: m.Value}, nil
	case "Reset":
		return board.Command{Type: board.CmdReset}, nil
	default:
		return board.Command{}, errUnknownType
	}
}

func indices(m types.ClientMessage) (int, int, error) {
	if m.Team == nil || m.Slot == nil {
		return 0, 0, fmt.Errorf("%w: team and slot are required", board.ErrIndex)
	}
	return *m.Team, *m.Slot, nil
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, _ := json.Marshal(msg)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
