package protocol

import (
	"sheetsync/internal/grid"
	"sheetsync/internal/presence"
)

type JoinPayload struct {
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

type TypingPayload struct {
	CellID string `json:"cellId"`
}

type CellChangePayload struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value"`
}

type ApplyFormatPayload struct {
	Targets []grid.Range  `json:"targets"`
	Patch   grid.StyleSet `json:"patch"`
}

type FillPayload struct {
	UpdatedCells  []grid.CellUpdate  `json:"updatedCells"`
	UpdatedStyles []grid.StyleUpdate `json:"updatedStyles"`
}

type PastePayload struct {
	PastedCells []grid.CellUpdate `json:"pastedCells"`
}

type ClearPayload struct {
	Cells  []grid.CellUpdate  `json:"cells"`
	Styles []grid.StyleUpdate `json:"styles"`
}

// Undo and redo kinds.
const (
	KindUndo = "undo"
	KindRedo = "redo"
)

type UndoRedoPayload struct {
	Kind     string        `json:"kind"`
	Snapshot grid.Snapshot `json:"snapshot"`
}

// MergePayload also lists the ranges the merge fused away so receivers drop
// them before adding the new one.
type MergePayload struct {
	NewRanges       []grid.MergedRange `json:"newRanges"`
	UpdatedCells    []grid.CellUpdate  `json:"updatedCells"`
	UpdatedStyles   []grid.StyleUpdate `json:"updatedStyles"`
	RemovedRangeIDs []string           `json:"removedRangeIds,omitempty"`
}

type UnmergePayload struct {
	RemovedRangeIDs []string `json:"removedRangeIds"`
}

type PresenceSnapshotPayload struct {
	Users []presence.Entry `json:"users"`
}

type DocumentSnapshotPayload struct {
	Rows     int           `json:"rows"`
	Cols     int           `json:"cols"`
	Version  int           `json:"version"`
	Snapshot grid.Snapshot `json:"snapshot"`
}

type UserJoinedPayload struct {
	User presence.Entry `json:"user"`
}

// Reasons a user left a room.
const (
	ReasonLeave      = "leave"
	ReasonDisconnect = "disconnect"
	ReasonIdle       = "idle"
)

type UserLeftPayload struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

type RejectedPayload struct {
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}
