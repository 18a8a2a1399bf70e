// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/querychat/internal/config"
	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/query"
	"github.com/jeranaias/querychat/internal/storage"
	"github.com/jeranaias/querychat/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady   State = iota // Ready for input
	StateWaiting              // A question is in flight
)

// panelKind names the panel shown between the messages and the input.
type panelKind int

const (
	panelNone panelKind = iota
	panelHelp
	panelDetail
)

// Asker sends one question to the query backend. *query.Client implements it.
type Asker interface {
	Ask(ctx context.Context, req query.Request) (*query.Response, error)
}

// Options wires the chat view to its collaborators. Every field is optional.
type Options struct {
	Client  Asker
	Store   storage.Store
	Watcher *storage.Watcher
	Config  *config.Config

	// Endpoint is shown in the header.
	Endpoint string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	state State

	// Styling
	theme    *styles.Theme
	renderer *renderer

	// Dimensions
	width  int
	height int

	// Conversation
	conversation *model.Conversation

	// Collaborators
	client   Asker
	store    storage.Store
	watcher  *storage.Watcher
	cfg      *config.Config
	endpoint string

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	keyMap   KeyMap

	// Pending request
	requestID    int
	pendingStart time.Time
	cancel       context.CancelFunc

	// Panel shown above the input (help, record detail, query)
	panel      panelKind
	panelTitle string
	panelBody  string

	// Transient status line
	statusMsg   string
	statusError bool
	statusSeq   int

	showQuery bool
}

// New creates a new chat model.
func New(theme *styles.Theme, opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if theme == nil {
		theme = styles.NewTheme(cfg.UI.Theme)
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your data, or /help"
	ti.CharLimit = query.MaxQueryLength
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = styles.QuerySpinner
	sp.Style = theme.Spinner

	return Model{
		state:        StateReady,
		theme:        theme,
		renderer:     newRenderer(theme, cfg.UI.TablePreviewRows),
		conversation: model.NewConversation(),
		client:       opts.Client,
		store:        opts.Store,
		watcher:      opts.Watcher,
		cfg:          cfg,
		endpoint:     opts.Endpoint,
		viewport:     vp,
		input:        ti,
		spinner:      sp,
		help:         help.New(),
		keyMap:       DefaultKeyMap(),
		showQuery:    cfg.UI.ShowQuery,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init restores history and starts watching for external changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		loadHistoryCmd(m.store, false),
		watchCmd(m.watcher),
	)
}

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case AnswerMsg:
		return m.handleAnswer(msg)

	case HistoryLoadedMsg:
		return m.handleHistoryLoaded(msg)

	case HistoryChangedMsg:
		return m.handleHistoryChanged()

	case WatchErrorMsg:
		log.Printf("[chat] history watcher: %v", msg.Err)
		return m, tea.Batch(m.setStatus("History watcher: "+msg.Err.Error(), true), watchCmd(m.watcher))

	case ExportCompleteMsg:
		return m.handleExportComplete(msg)

	case OpenCompleteMsg:
		return m.handleOpenComplete(msg)

	case StatusClearMsg:
		if msg.Seq == m.statusSeq {
			m.statusMsg = ""
			m.statusError = false
		}
		return m, nil

	case spinner.TickMsg:
		if m.state == StateWaiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	default:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}
}

// View renders the chat view.
func (m Model) View() string {
	return m.renderChat()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Conversation returns the conversation shown in the view.
func (m Model) Conversation() *model.Conversation {
	return m.conversation
}

// State returns the current chat state.
func (m Model) State() State {
	return m.state
}

// Status returns the transient status line.
func (m Model) Status() string {
	return m.statusMsg
}

// IsWaiting reports whether a question is in flight.
func (m Model) IsWaiting() bool {
	return m.state == StateWaiting
}
