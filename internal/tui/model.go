package tui

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/legio/legio/internal/store"
)

// Panel identifies which half of the dashboard has input focus.
type Panel int

const (
	PanelAgents Panel = iota
	PanelFeed
)

// Model is the bubbletea model backing `legio feed`'s interactive dashboard,
// adapted from the teacher's tui/feed.Model down to two panels: Legio has
// no convoy/merge-queue panel of its own (autopilot already folds that into
// the feed as merge_ready/merge mail and events).
type Model struct {
	width  int
	height int

	focused        Panel
	agentsViewport viewport.Model
	feedViewport   viewport.Model

	sessions *store.SessionStore
	agents   []store.Session
	events   []Event

	keys     KeyMap
	help     help.Model
	showHelp bool

	eventChan <-chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewModel creates a dashboard model reading live agent state from
// sessions and a combined event/mail feed from source.
func NewModel(sessions *store.SessionStore, source Source) *Model {
	h := help.New()
	h.ShowAll = false

	m := &Model{
		focused:        PanelAgents,
		agentsViewport: viewport.New(0, 0),
		feedViewport:   viewport.New(0, 0),
		sessions:       sessions,
		events:         make([]Event, 0, 1000),
		keys:           DefaultKeyMap(),
		help:           h,
		done:           make(chan struct{}),
	}
	if source != nil {
		m.eventChan = source.Events()
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listenForEvents(), m.refreshAgents(), tea.SetWindowTitle("legio feed"))
}

type eventMsg Event
type agentsMsg []store.Session
type tickMsg time.Time

func (m *Model) listenForEvents() tea.Cmd {
	if m.eventChan == nil {
		return nil
	}
	eventChan := m.eventChan
	done := m.done
	return func() tea.Msg {
		select {
		case e, ok := <-eventChan:
			if !ok {
				return nil
			}
			return eventMsg(e)
		case <-done:
			return nil
		}
	}
}

func (m *Model) refreshAgents() tea.Cmd {
	if m.sessions == nil {
		return nil
	}
	sessions := m.sessions
	return func() tea.Msg {
		all, err := sessions.GetAll(context.Background())
		if err != nil {
			return nil
		}
		sort.Slice(all, func(i, j int) bool { return all[i].AgentName < all[j].AgentName })
		return agentsMsg(all)
	}
}

func agentsTick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case eventMsg:
		m.addEvent(Event(msg))
		cmds = append(cmds, m.listenForEvents())

	case agentsMsg:
		m.agents = msg
		m.render()
		cmds = append(cmds, agentsTick())

	case tickMsg:
		cmds = append(cmds, m.refreshAgents())
	}

	var cmd tea.Cmd
	switch m.focused {
	case PanelAgents:
		m.agentsViewport, cmd = m.agentsViewport.Update(msg)
	case PanelFeed:
		m.feedViewport, cmd = m.feedViewport.Update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closeOnce.Do(func() { close(m.done) })
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if m.focused == PanelAgents {
			m.focused = PanelFeed
		} else {
			m.focused = PanelAgents
		}
		return m, nil

	case key.Matches(msg, m.keys.FocusAgents):
		m.focused = PanelAgents
		return m, nil

	case key.Matches(msg, m.keys.FocusFeed):
		m.focused = PanelFeed
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshAgents()
	}

	var cmd tea.Cmd
	switch m.focused {
	case PanelAgents:
		m.agentsViewport, cmd = m.agentsViewport.Update(msg)
	case PanelFeed:
		m.feedViewport, cmd = m.feedViewport.Update(msg)
	}
	return m, cmd
}

func (m *Model) layout() {
	headerHeight := 1
	statusHeight := 1
	helpHeight := 1
	if m.showHelp {
		helpHeight = 3
	}
	borderHeight := 4 // top+bottom borders for 2 panels

	available := m.height - headerHeight - statusHeight - helpHeight - borderHeight
	if available < 4 {
		available = 4
	}
	agentsHeight := available * 40 / 100
	if agentsHeight < 3 {
		agentsHeight = 3
	}
	feedHeight := available - agentsHeight
	if feedHeight < 3 {
		feedHeight = 3
	}

	contentWidth := m.width - 4
	if contentWidth < 20 {
		contentWidth = 20
	}

	m.agentsViewport.Width = contentWidth
	m.agentsViewport.Height = agentsHeight
	m.feedViewport.Width = contentWidth
	m.feedViewport.Height = feedHeight

	m.render()
}

func (m *Model) render() {
	m.agentsViewport.SetContent(m.renderAgents())
	m.feedViewport.SetContent(m.renderFeed())
}

// addEvent appends an incoming feed event, capping history at 1000 rows to
// bound memory for a long-running dashboard (same cap the teacher's
// tui/feed.Model uses for its event slice).
func (m *Model) addEvent(e Event) {
	m.events = append(m.events, e)
	if len(m.events) > 1000 {
		m.events = m.events[len(m.events)-1000:]
	}
	m.render()
}

func (m *Model) View() string {
	return m.view()
}
