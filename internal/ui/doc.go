// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for submission syncs:
//  1. [PendingListView] : Browse submissions waiting to be uploaded
//  2. [ConfirmView] : Confirm the sync run
//  3. [RunView] : Monitor real-time progress updates
//  4. [ResultView] : Display stored/uploaded counts and branch failures
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the sync engine, providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
