package session

import (
	"context"
	"errors"

	"github.com/DoyleJ11/operator-board/internal/board"
)

var ErrClosed = errors.New("session closed")

// send delivers m unless the session has stopped or ctx ends first.
func (s *Session) send(ctx context.Context, m Msg) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.inbox <- m:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await waits for a reply on ch. Reply channels are buffered, so a caller
// that gives up never blocks the loop. A reply sent just before the session
// stopped still wins over ErrClosed.
func await[T any](ctx context.Context, s *Session, ch chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-s.done:
		select {
		case v := <-ch:
			return v, nil
		default:
		}
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Session) callErr(ctx context.Context, m Msg, ch chan error) error {
	if err := s.send(ctx, m); err != nil {
		return err
	}
	res, err := await(ctx, s, ch)
	if err != nil {
		return err
	}
	return res
}

// Apply sends a board command and waits for it to be applied and saved.
func (s *Session) Apply(ctx context.Context, cmd board.Command) error {
	ch := make(chan error, 1)
	return s.callErr(ctx, FromClient{Cmd: cmd, Reply: ch}, ch)
}

func (s *Session) OpenPicker(ctx context.Context, team, slot int) error {
	ch := make(chan error, 1)
	return s.callErr(ctx, OpenPicker{Team: team, Slot: slot, Reply: ch}, ch)
}

func (s *Session) QueryPicker(ctx context.Context, query string) (PickerView, error) {
	ch := make(chan PickerView, 1)
	if err := s.send(ctx, QueryPicker{Query: query, Reply: ch}); err != nil {
		return PickerView{}, err
	}
	return await(ctx, s, ch)
}

func (s *Session) SelectOperator(ctx context.Context, name string) error {
	ch := make(chan error, 1)
	return s.callErr(ctx, SelectOperator{Name: name, Reply: ch}, ch)
}

func (s *Session) ClosePicker(ctx context.Context) error {
	ch := make(chan error, 1)
	return s.callErr(ctx, ClosePicker{Reply: ch}, ch)
}

func (s *Session) State(ctx context.Context) (View, error) {
	ch := make(chan View, 1)
	if err := s.send(ctx, GetState{Reply: ch}); err != nil {
		return View{}, err
	}
	return await(ctx, s, ch)
}

// Join attaches out to the session. It reports false when the session has
// stopped or ctx ended first; out is then left untouched.
func (s *Session) Join(ctx context.Context, clientID string, out chan Snapshot) bool {
	return s.send(ctx, Join{ClientID: clientID, Outbox: out}) == nil
}

// Leave detaches the client and closes its outbox. Leaving a stopped session
// is a no-op since shutdown already closed every outbox.
func (s *Session) Leave(clientID string) {
	select {
	case s.inbox <- Leave{ClientID: clientID}:
	case <-s.done:
	}
}

// Stop asks the loop to shut down and waits for it to exit.
func (s *Session) Stop() {
	select {
	case s.inbox <- Shutdown{}:
	case <-s.done:
	}
	<-s.done
}
