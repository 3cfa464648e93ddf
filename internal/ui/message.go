package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgRecordsLoaded MsgKind = iota
	MsgSubmitted
	MsgSaved
	MsgDeleted
)

type recordsLoaded struct {
	records []models.BackupRecord
	err     error
}

type recordSaved struct {
	id     models.RecordID
	record models.BackupRecord
	err    error
}

type recordDeleted struct {
	id  models.RecordID
	err error
}

// recordsLoadedMsg is the constructor for [MsgRecordsLoaded]
func recordsLoadedMsg(records []models.BackupRecord, err error) Msg {
	return Msg{kind: MsgRecordsLoaded, data: recordsLoaded{records, err}}
}

// submittedMsg is the constructor for [MsgSubmitted]
func submittedMsg(res tasks.SubmitResult) Msg {
	return Msg{kind: MsgSubmitted, data: res}
}

// savedMsg is the constructor for [MsgSaved]
func savedMsg(id models.RecordID, record models.BackupRecord, err error) Msg {
	return Msg{kind: MsgSaved, data: recordSaved{id, record, err}}
}

// deletedMsg is the constructor for [MsgDeleted]
func deletedMsg(id models.RecordID, err error) Msg {
	return Msg{kind: MsgDeleted, data: recordDeleted{id, err}}
}
