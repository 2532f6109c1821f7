package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ojtools/ojsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PendingListView ViewState = iota
	ConfirmView
	RunView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       tasks.SyncEngine
	store        tasks.RecordStore
	destinations []string
	width        int
	height       int
	pendingList  list.Model
	pendingCount int
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	result       *tasks.RunResult
	err          error
	help         help.Model
	keys         keyMap
}

type pendingFetchedMsg struct {
	items []pendingItem
	err   error
}

type progressUpdateMsg tasks.ProgressUpdate

type runCompleteMsg struct {
	result *tasks.RunResult
	err    error
}

// NewModel creates a new TUI model with the provided dependencies.
// destinations names the boards pending counts are computed against.
func NewModel(ctx context.Context, engine tasks.SyncEngine, store tasks.RecordStore, destinations []string) *Model {
	return &Model{
		ctx:          ctx,
		view:         PendingListView,
		engine:       engine,
		store:        store,
		destinations: destinations,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init initializes the TUI by loading the pending submissions.
func (m *Model) Init() tea.Cmd {
	return m.fetchPending()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.pendingList.Width() == 0 {
			m.pendingList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PendingListView:
			return m.handlePendingListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case pendingFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.pendingCount = len(msg.items)
		items := make([]list.Item, len(msg.items))
		for i, item := range msg.items {
			items[i] = item
		}
		m.pendingList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.pendingList.Title = "Pending Submissions"
		m.pendingList.SetSize(m.width-4, m.height-8)
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case runCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	return m.updateList(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PendingListView:
		return m.renderPendingList()
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePendingListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.pendingList, cmd = m.pendingList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = PendingListView
		return m, nil
	case "y":
		m.view = RunView
		return m, m.startRun()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = PendingListView
		m.result = nil
		m.err = nil
		return m, m.fetchPending()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == PendingListView {
		m.pendingList, cmd = m.pendingList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPending() tea.Cmd {
	return func() tea.Msg {
		var items []pendingItem
		for _, destination := range m.destinations {
			pending, err := m.store.PendingForDestination(destination)
			if err != nil {
				return pendingFetchedMsg{err: err}
			}
			for _, sub := range pending {
				items = append(items, pendingItem{sub: sub, destination: destination})
			}
		}
		return pendingFetchedMsg{items: items}
	}
}

func (m *Model) startRun() tea.Cmd {
	progressChan := make(chan tasks.ProgressUpdate, 50)
	m.progressChan = progressChan

	go func() {
		result, err := m.engine.Run(m.ctx, progressChan)
		m.result = result
		m.err = err
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return runCompleteMsg{result: m.result, err: m.err}
		}

		update, ok := <-m.progressChan
		if !ok {
			return runCompleteMsg{result: m.result, err: m.err}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderPendingList() string {
	runKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sync"))
	helpKeys := []key.Binding{runKey, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.pendingList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Run sync now?")
	info := fmt.Sprintf("\nPending submissions: %d\nDestinations: %d\n", m.pendingCount, len(m.destinations))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderRun() string {
	title := styles.title.Render("Syncing Submissions")

	var phase string
	switch m.progress.Phase {
	case tasks.FetchSubmissions:
		phase = "Fetching new submissions..."
	case tasks.StoreRecords:
		phase = "Recording submissions..."
	case tasks.ResolveContainer:
		phase = "Resolving destination boards..."
	case tasks.UploadCards:
		phase = fmt.Sprintf("Uploading cards (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v\n\nPress r to rerun, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to rerun, q to quit")
	}

	title := styles.ok.Render("✓ Sync Complete!")
	info := fmt.Sprintf(
		"\nStored: %d new submissions\nUploaded: %d cards\nFailed: %d uploads",
		m.result.TotalStored(),
		m.result.TotalUploaded(),
		m.result.TotalFailed(),
	)

	var branches string
	for _, src := range m.result.Sources {
		if src.Err != nil {
			branches += fmt.Sprintf("\n  • %s: %v", src.Judge, src.Err)
		}
	}
	for _, dest := range m.result.Destinations {
		if dest.Err != nil {
			branches += fmt.Sprintf("\n  • %s: %v", dest.Destination, dest.Err)
		}
	}
	if branches != "" {
		branches = fmt.Sprintf("\n\n%s%s", styles.warn.Render("Branch failures:"), branches)
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, branches, helpView)
}
