// Package ui shows a terminal progress view while a harvest runs, using bubbletea's Elm
// architecture.
//
// The [Model] runs a [Job] in a goroutine and reads [tasks.ProgressUpdate] values from the channel
// the job writes to. Phases without a known length show a spinner; track resolution shows a
// progress bar. The last few messages stay on screen so misses are visible as they happen.
//
// Pressing q cancels the job's context and waits for it to return; ctrl+\ quits immediately.
// The CLI only uses the view when stdout is a terminal.
package ui
