package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/events"
	"github.com/j-94/waggle-dance/internal/packet"
)

// Watch renders a live view of a run, consuming envelopes until the channel
// closes or the user quits. It blocks for the duration of the stream.
//
// Closing the bus ends the stream; the caller remains responsible for the
// run itself, which keeps going if the user quits the view early.
func Watch(ctx context.Context, goal string, ch <-chan events.Envelope) error {
	p := tea.NewProgram(
		newWatchModel(goal, ch),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}

// WatchKeyMap defines the keyboard bindings for the watch view.
type WatchKeyMap struct {
	Quit key.Binding
}

// DefaultWatchKeyMap returns the default bindings.
func DefaultWatchKeyMap() WatchKeyMap {
	return WatchKeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// taskRow is the rendered state of one task, folded from its packet stream.
type taskRow struct {
	node   dag.Node
	status packet.Status
	detail string
	tokens int
}

type (
	envelopeMsg     events.Envelope
	streamClosedMsg struct{}
)

type watchModel struct {
	goal  string
	theme *Theme
	keys  WatchKeyMap
	spin  spinner.Model
	ch    <-chan events.Envelope

	rows   map[string]*taskRow
	order  []string
	closed bool
	width  int
}

func newWatchModel(goal string, ch <-chan events.Envelope) *watchModel {
	theme := DefaultTheme()
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(theme.SpinnerStyle),
	)
	return &watchModel{
		goal:  goal,
		theme: theme,
		keys:  DefaultWatchKeyMap(),
		spin:  sp,
		ch:    ch,
		rows:  make(map[string]*taskRow),
	}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.nextEnvelope())
}

// nextEnvelope waits for one envelope. Re-issued after every receive so the
// stream drains one message per update cycle.
func (m *watchModel) nextEnvelope() tea.Cmd {
	return func() tea.Msg {
		env, ok := <-m.ch
		if !ok {
			return streamClosedMsg{}
		}
		return envelopeMsg(env)
	}
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil

	case envelopeMsg:
		m.apply(events.Envelope(msg))
		return m, m.nextEnvelope()

	case streamClosedMsg:
		m.closed = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// apply folds one envelope into the row for its node.
func (m *watchModel) apply(env events.Envelope) {
	row, ok := m.rows[env.Node.ID]
	if !ok {
		row = &taskRow{node: env.Node, status: packet.StatusIdle}
		m.rows[env.Node.ID] = row
		m.order = append(m.order, env.Node.ID)
	}
	row.node = env.Node

	p := env.Packet
	if p.Kind == packet.PacketToken {
		row.tokens++
		row.status = packet.StatusWorking
		return
	}

	row.status = packet.StatusOf(p.Kind)
	switch {
	case p.Kind.Failure():
		row.detail = p.Message
	case p.Kind == packet.PacketHumanRequest:
		row.detail = p.Reason
	case p.Kind.Finishing():
		row.detail = FirstLine(p.Value)
	}
}

func (m *watchModel) View() string {
	var b strings.Builder

	b.WriteString(m.theme.TitleStyle.Render("waggledance"))
	b.WriteString("  ")
	b.WriteString(m.theme.GoalStyle.Render(Ellipsize(m.goal, m.detailWidth()+20)))
	b.WriteString("\n\n")

	for _, id := range m.order {
		b.WriteString(m.renderRow(m.rows[id]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.closed {
		b.WriteString(m.theme.HelpStyle.Render("run finished"))
	} else {
		b.WriteString(m.spin.View())
		b.WriteString(m.theme.HelpStyle.Render(" running  (q to quit view)"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *watchModel) renderRow(row *taskRow) string {
	badge := m.theme.StatusStyle(row.status).Render(fmt.Sprintf("%-7s", row.status))
	line := fmt.Sprintf("%s  %-9s %s", badge, row.node.ID, row.node.Name)
	if row.status == packet.StatusWorking && row.tokens > 0 {
		line += m.theme.DetailStyle.Render(fmt.Sprintf("  %d tokens", row.tokens))
	}
	if row.detail != "" {
		line += m.theme.DetailStyle.Render("  " + Ellipsize(row.detail, m.detailWidth()))
	}
	return line
}

// detailWidth is how many columns remain for detail text after the badge,
// id, and name columns.
func (m *watchModel) detailWidth() int {
	if m.width == 0 {
		return 60
	}
	if w := m.width - 40; w > 20 {
		return w
	}
	return 20
}
