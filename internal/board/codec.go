package board

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var (
	operatorKeys  = []string{"name", "primary", "secondary"}
	equipmentKeys = []string{"armor", "gloves", "kit1", "kit2"}
)

// Deserialize rebuilds a board from its persisted form. The data must be
// exactly 5 teams of 4 slots with the expected field names. On any mismatch
// it returns an empty board together with an ErrDeserialize error, so the
// caller can log and discard the snapshot while still holding a usable
// board.
func Deserialize(data []byte, saver Saver) (*Board, error) {
	teams, err := decodeTeams(data)
	if err != nil {
		return New(saver), fmt.Errorf("%w: %v", ErrDeserialize, err)
	}
	return &Board{teams: teams, saver: saver}, nil
}

func decodeTeams(data []byte) (Teams, error) {
	var out Teams

	var rawTeams []json.RawMessage
	if err := json.Unmarshal(data, &rawTeams); err != nil {
		return out, err
	}
	if len(rawTeams) != TeamCount {
		return out, fmt.Errorf("want %d teams, got %d", TeamCount, len(rawTeams))
	}

	for i, rawTeam := range rawTeams {
		var rawSlots []json.RawMessage
		if err := json.Unmarshal(rawTeam, &rawSlots); err != nil {
			return out, fmt.Errorf("team %d: %w", i, err)
		}
		if len(rawSlots) != SlotCount {
			return out, fmt.Errorf("team %d: want %d slots, got %d", i, SlotCount, len(rawSlots))
		}
		for j, rawSlot := range rawSlots {
			slot, err := decodeSlot(rawSlot)
			if err != nil {
				return out, fmt.Errorf("team %d slot %d: %w", i, j, err)
			}
			out[i][j] = slot
		}
	}
	return out, nil
}

func decodeSlot(raw json.RawMessage) (Slot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Slot{}, err
	}
	if fields == nil {
		return Slot{}, fmt.Errorf("slot is null")
	}
	if len(fields) != 2 {
		return Slot{}, fmt.Errorf("want fields operator and equipment, got %d fields", len(fields))
	}
	rawOp, ok := fields["operator"]
	if !ok {
		return Slot{}, fmt.Errorf("missing operator")
	}
	rawEquip, ok := fields["equipment"]
	if !ok {
		return Slot{}, fmt.Errorf("missing equipment")
	}

	var slot Slot
	if !bytes.Equal(bytes.TrimSpace(rawOp), []byte("null")) {
		vals, err := decodeStrings(rawOp, operatorKeys)
		if err != nil {
			return Slot{}, fmt.Errorf("operator: %w", err)
		}
		slot.Operator = &OperatorRef{Name: vals["name"], Primary: vals["primary"], Secondary: vals["secondary"]}
	}

	vals, err := decodeStrings(rawEquip, equipmentKeys)
	if err != nil {
		return Slot{}, fmt.Errorf("equipment: %w", err)
	}
	slot.Equipment = Equipment{Armor: vals["armor"], Gloves: vals["gloves"], Kit1: vals["kit1"], Kit2: vals["kit2"]}
	return slot, nil
}

// decodeStrings requires raw to be an object with exactly keys, each a string.
func decodeStrings(raw json.RawMessage, keys []string) (map[string]string, error) {
	var fields map[string]*string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("object is null")
	}
	if len(fields) != len(keys) {
		return nil, fmt.Errorf("want %d fields, got %d", len(keys), len(fields))
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			return nil, fmt.Errorf("missing %q", k)
		}
		out[k] = *v
	}
	return out, nil
}
