package types

import (
	"github.com/DoyleJ11/operator-board/internal/board"
	"github.com/DoyleJ11/operator-board/internal/session"
)

// Client -> Server
//
//	Assign:         team, slot, name         (name must exist in the roster)
//	SetEquipment:   team, slot, field, value (field: armor|gloves|kit1|kit2)
//	Reset:          {}
//	OpenPicker:     team, slot
//	QueryPicker:    query                    (answered with PickerResults)
//	SelectOperator: name
//	ClosePicker:    {}
type ClientMessage struct {
	Type  string `json:"type"`
	Team  *int   `json:"team,omitempty"`
	Slot  *int   `json:"slot,omitempty"`
	Name  string `json:"name,omitempty"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
	Query string `json:"query,omitempty"`
}

// Server -> Client
//
//	StateSnapshot: version, teams, picker
//	PickerResults: picker (with results)
//	Error:         error
type ServerMessage struct {
	Type    string              `json:"type"` // "StateSnapshot" | "PickerResults" | "Error"
	Version int                 `json:"version,omitempty"`
	Teams   *board.Teams        `json:"teams,omitempty"`
	Picker  *session.PickerView `json:"picker,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func SnapshotMessage(snap session.Snapshot) ServerMessage {
	return ServerMessage{Type: "StateSnapshot", Version: snap.Version, Teams: &snap.Teams, Picker: &snap.Picker}
}

func ErrorMessage(err error) ServerMessage {
	return ServerMessage{Type: "Error", Error: err.Error()}
}
