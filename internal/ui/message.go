package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/fiply/internal/tasks"
)

// MsgKind enumerates the messages the progress view reacts to besides bubbletea's own.
type MsgKind int

// Msg is the union of job messages (Elm-style).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgJobDone
)

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// jobDoneMsg is the constructor for [MsgJobDone]; err is the job's return value.
func jobDoneMsg(err error) Msg {
	return Msg{kind: MsgJobDone, data: err}
}

func (m Msg) update() tasks.ProgressUpdate {
	u, _ := m.data.(tasks.ProgressUpdate)
	return u
}

func (m Msg) err() error {
	err, _ := m.data.(error)
	return err
}
