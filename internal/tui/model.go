package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rag-engine/internal/domain"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResult, error)
}

// Model is the Bubble Tea model for the chat front-end. It owns the
// conversation history and passes it read-only into the query pipeline.
type Model struct {
	service  RAGPort
	input    textinput.Model
	viewport viewport.Model
	history  []domain.ChatTurn
	sources  []string
	sourceID string
	topK     int
	status   string
	ready    bool
}

// New creates a new chat model. sourceID, when non-empty, restricts every
// query to that document.
func New(service RAGPort, sourceID string, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		input:    ti,
		viewport: vp,
		sourceID: sourceID,
		topK:     topK,
		status:   "Ready. Ctrl+R resets the conversation, Ctrl+C quits.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + qh + 1 // header + status + input box + spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-ch)
		m.viewport.SetContent(m.renderConversation())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "ctrl+r":
			m.history = nil
			m.sources = nil
			m.status = "Conversation reset."
			m.viewport.SetContent(m.renderConversation())
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				break
			}
			// The current question is not part of the history handed to
			// the pipeline; only prior turns are.
			res, err := m.service.Query(context.Background(), domain.QueryRequest{
				Question: q,
				TopK:     m.topK,
				SourceID: m.sourceID,
				History:  m.history,
			})
			if err != nil && res.Answer == "" {
				m.status = "Error: " + err.Error()
			} else {
				m.history = append(m.history,
					domain.ChatTurn{Role: domain.RoleUser, Content: q},
					domain.ChatTurn{Role: domain.RoleAssistant, Content: res.Answer},
				)
				m.sources = res.Sources
				m.status = fmt.Sprintf("%d contexts used", res.NumContexts)
				if err != nil {
					m.status += " (audit log failed)"
				}
			}
			m.input.SetValue("")
			m.viewport.SetContent(m.renderConversation())
			m.viewport.GotoBottom()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := "RAG Chat"
	if m.sourceID != "" {
		title += "  [" + m.sourceID + "]"
	}
	header := lipgloss.NewStyle().Bold(true).Render(title)
	chat := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + chat + "\n" + input + "\n" + status
}

func (m Model) renderConversation() string {
	if len(m.history) == 0 {
		return "No messages yet."
	}
	var b strings.Builder
	for _, turn := range m.history {
		switch turn.Role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("You: ") + turn.Content + "\n\n")
		case domain.RoleAssistant:
			b.WriteString(assistantStyle.Render("Assistant: ") + turn.Content + "\n\n")
		}
	}
	if len(m.sources) > 0 {
		b.WriteString(sourceStyle.Render("Sources: " + strings.Join(m.sources, ", ")))
	}
	return b.String()
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
