package board

import (
	"context"
	"errors"
)

var ErrUnsupportedCommand = errors.New("unsupported command")

type CommandType string

const (
	CmdAssign       CommandType = "Assign"
	CmdSetEquipment CommandType = "SetEquipment"
	CmdReset        CommandType = "Reset"
)

/*
	CmdAssign       -> EvtOperatorAssigned
	CmdSetEquipment -> EvtEquipmentChanged
	CmdReset        -> EvtBoardReset

	Every command that produces an event has already been saved.
*/

type Command struct {
	Type     CommandType
	Team     int
	Slot     int
	Operator OperatorRef
	Field    Field
	Value    string
}

type EventType string

const (
	EvtOperatorAssigned EventType = "OperatorAssigned"
	EvtEquipmentChanged EventType = "EquipmentChanged"
	EvtBoardReset       EventType = "BoardReset"
)

type Event struct {
	Type     EventType
	Team     int
	Slot     int
	Operator string
	Field    Field
	Value    string
}

// Apply dispatches cmd to the matching mutation. On error the board is
// unchanged and no events are returned.
func (b *Board) Apply(ctx context.Context, cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdAssign:
		if err := b.Assign(ctx, cmd.Team, cmd.Slot, cmd.Operator); err != nil {
			return nil, err
		}
		return []Event{{Type: EvtOperatorAssigned, Team: cmd.Team, Slot: cmd.Slot, Operator: cmd.Operator.Name}}, nil

	case CmdSetEquipment:
		if err := b.SetEquipment(ctx, cmd.Team, cmd.Slot, cmd.Field, cmd.Value); err != nil {
			return nil, err
		}
		return []Event{{Type: EvtEquipmentChanged, Team: cmd.Team, Slot: cmd.Slot, Field: cmd.Field, Value: cmd.Value}}, nil

	case CmdReset:
		if err := b.Reset(ctx); err != nil {
			return nil, err
		}
		return []Event{{Type: EvtBoardReset}}, nil

	default:
		return nil, ErrUnsupportedCommand
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
