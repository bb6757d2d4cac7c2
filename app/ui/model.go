package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"umkmrag/types"
)

// Port is the UI-facing subset of the service.
type Port interface {
	Ask(ctx context.Context, question string) (*types.Answer, error)
	IngestFile(ctx context.Context, path string) (int, error)
	Status(ctx context.Context) (types.IndexStatus, error)
}

type Mode int

const (
	ModeUser Mode = iota
	ModeAdmin
)

func (m Mode) String() string {
	if m == ModeAdmin {
		return "Admin"
	}
	return "User"
}

type answerMsg struct {
	question string
	answer   *types.Answer
	err      error
}

type ingestMsg struct {
	path  string
	added int
	err   error
}

type statusMsg struct {
	status types.IndexStatus
	err    error
}

// Model is the Bubble Tea model: User mode asks questions, Admin mode
// ingests PDFs from a path and shows index status. Tab switches modes.
type Model struct {
	ctx      context.Context
	service  Port
	mode     Mode
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	busy     bool
	ready    bool
	status   string
	body     string
	index    types.IndexStatus
}

func New(ctx context.Context, service Port) Model {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := Model{
		ctx:      ctx,
		service:  service,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		status:   "Type a question and press Enter. Tab switches to Admin mode.",
		body:     "No answers yet.",
	}
	m.applyMode()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadStatus())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + qh + 1 // header, mode line, status + spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-rh-1)
		m.viewport.SetContent(m.body)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyTab:
			if m.mode == ModeUser {
				m.mode = ModeAdmin
			} else {
				m.mode = ModeUser
			}
			m.applyMode()
			return m, m.loadStatus()
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error"
			m.setBody(renderProblem(msg.err))
			return m, nil
		}
		m.status = fmt.Sprintf("Answer for %q", msg.question)
		m.setBody(types.RenderAnswer(msg.answer))
		return m, nil

	case ingestMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Upload failed"
			m.setBody(renderProblem(msg.err))
			return m, nil
		}
		m.status = fmt.Sprintf("Saved. Added %d chunks from %s.", msg.added, msg.path)
		m.input.Reset()
		return m, m.loadStatus()

	case statusMsg:
		if msg.err != nil {
			m.status = "Status unavailable: " + msg.err.Error()
			return m, nil
		}
		m.index = msg.status
		if m.mode == ModeAdmin {
			m.setBody(renderStatus(msg.status))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" || m.busy {
		return m, nil
	}
	m.busy = true
	ctx, svc := m.ctx, m.service

	if m.mode == ModeAdmin {
		m.status = "Processing " + value
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
			n, err := svc.IngestFile(ctx, value)
			return ingestMsg{path: value, added: n, err: err}
		})
	}

	m.status = "Thinking..."
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ans, err := svc.Ask(ctx, value)
		return answerMsg{question: value, answer: ans, err: err}
	})
}

func (m Model) loadStatus() tea.Cmd {
	ctx, svc := m.ctx, m.service
	return func() tea.Msg {
		st, err := svc.Status(ctx)
		return statusMsg{status: st, err: err}
	}
}

func (m *Model) applyMode() {
	if m.mode == ModeAdmin {
		m.input.Prompt = "pdf> "
		m.input.Placeholder = "Path to a PDF catalog, Enter to upload"
		m.status = "Admin mode. Enter a PDF path to index it."
		m.setBody(renderStatus(m.index))
		return
	}
	m.input.Prompt = "> "
	m.input.Placeholder = "Ask about UMKM, menus, recommendations"
	m.status = "User mode. Type a question and press Enter."
}

func (m *Model) setBody(s string) {
	m.body = s
	m.viewport.SetContent(s)
	m.viewport.GotoTop()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("UMKM Catalog Chat")
	mode := modeStyle.Render(fmt.Sprintf("[%s mode]  tab: switch  ctrl+c: quit", m.mode))
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + mode + "\n" +
		resultBoxStyle.Render(m.viewport.View()) + "\n" +
		queryBoxStyle.Render(m.input.View()) + "\n" + status
}

func renderProblem(err error) string {
	p := types.Describe(err)
	var b strings.Builder
	b.WriteString(errorStyle.Render(p.Message))
	b.WriteString("\n")
	for _, d := range p.Details {
		b.WriteString("  - ")
		b.WriteString(d)
		b.WriteString("\n")
	}
	return b.String()
}

func renderStatus(st types.IndexStatus) string {
	if st.Index == "" {
		return "Index status not loaded yet."
	}
	return fmt.Sprintf("Index: %s\nVectors: %d\nPDF files uploaded: %d\n\n%s\n",
		st.Index, st.Vectors, st.PDFFilesUploaded, st.Message)
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	modeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Run starts the full-screen UI and blocks until the user quits.
func Run(ctx context.Context, service Port) error {
	_, err := tea.NewProgram(New(ctx, service), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
