//go:build native

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wizgo/internal/config"
	"wizgo/internal/generate"
	"wizgo/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D9FF")).
			Background(lipgloss.Color("#1a1a2e")).
			Padding(0, 2)

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			PaddingLeft(1)

	botStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
			PaddingLeft(1)

	systemStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFE66D")).
			PaddingLeft(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666680")).
			Italic(true).
			PaddingLeft(2)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666680")).
			Italic(true).
			PaddingLeft(2)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3d3d5c"))

	inputBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#00D9FF"))

	suggestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#00D9FF")).
			Padding(0, 1)

	normalSuggestionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666680")).
				Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4a4a6a")).
			PaddingLeft(1)

	streamingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Italic(true)
)

var placeholders = []string{
	"What's on your mind?",
	"Ask the model something...",
	"Type /help to see available commands",
}

var availableCommands = []string{"/help", "/stats", "/set", "/clear", "/exit", "/quit"}

var menuOptions = []string{"Clear History", "Toggle Stats", "Exit"}

type errMsg error

type message struct {
	role     string
	content  string
	stats    *generate.InferenceStats
	duration time.Duration
}

type tuiModel struct {
	engine *Engine
	sess   *session.Session
	cfg    config.Config
	opts   ReplOptions

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	messages []message
	ready    bool
	loading  bool
	renderer *glamour.TermRenderer
	width    int
	height   int
	program  *tea.Program

	suggestions     []string
	suggestionIdx   int
	showSuggestions bool

	menuOpen bool
	menuIdx  int
}

func initialModel(engine *Engine, sess *session.Session, cfg config.Config, opts ReplOptions) tuiModel {
	ta := textarea.New()
	ta.Placeholder = placeholders[0]
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 10000
	ta.SetWidth(80)
	ta.SetHeight(5)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return tuiModel{
		engine:   engine,
		sess:     sess,
		cfg:      cfg,
		opts:     opts,
		textarea: ta,
		spinner:  s,
		renderer: renderer,
		messages: []message{},
	}
}

func (m tuiModel) Init() tea.Cmd {
	return textarea.Blink
}

type generationResult struct {
	stats generate.InferenceStats
	err   error
	start time.Time
}

type streamToken struct {
	token string
	err   error
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.menuOpen {
			switch msg.Type {
			case tea.KeyUp:
				m.menuIdx = (m.menuIdx - 1 + len(menuOptions)) % len(menuOptions)
				return m, nil
			case tea.KeyDown:
				m.menuIdx = (m.menuIdx + 1) % len(menuOptions)
				return m, nil
			case tea.KeyEnter:
				m.menuOpen = false
				return m, m.handleMenuSelection()
			case tea.KeyEsc, tea.KeyCtrlO:
				m.menuOpen = false
				return m, nil
			}
			return m, nil
		}

		if m.showSuggestions {
			switch msg.Type {
			case tea.KeyUp:
				m.suggestionIdx--
				if m.suggestionIdx < 0 {
					m.suggestionIdx = len(m.suggestions) - 1
				}
				return m, nil
			case tea.KeyDown:
				m.suggestionIdx++
				if m.suggestionIdx >= len(m.suggestions) {
					m.suggestionIdx = 0
				}
				return m, nil
			case tea.KeyEnter, tea.KeyTab:
				if len(m.suggestions) > 0 {
					m.textarea.SetValue(m.suggestions[m.suggestionIdx] + " ")
					m.textarea.CursorEnd()
					m.showSuggestions = false
					return m, nil
				}
			case tea.KeyEsc:
				m.showSuggestions = false
				return m, nil
			}
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyCtrlO:
			m.menuOpen = !m.menuOpen
			m.menuIdx = 0
			return m, nil

		case tea.KeyCtrlS:
			if m.loading {
				return m, nil
			}

			userMsg := m.textarea.Value()
			if strings.TrimSpace(userMsg) == "" {
				return m, nil
			}

			low := strings.ToLower(strings.TrimSpace(userMsg))
			if handled, cmd := m.handleLocalCommand(low, userMsg); handled {
				m.textarea.Reset()
				return m, cmd
			}

			m.messages = append(m.messages, message{role: "User", content: userMsg})
			m.textarea.Reset()
			m.loading = true
			m.messages = append(m.messages, message{role: "wizgo", content: ""})
			m.updateViewport()

			return m, tea.Batch(m.spinner.Tick, m.runGeneration(userMsg))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		inputHeight := 5
		verticalMarginHeight := headerHeight + inputHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-verticalMarginHeight-4)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - verticalMarginHeight - 4
		}

		m.textarea.SetWidth(msg.Width - 6)

		r, _ := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(m.viewport.Width-4),
		)
		m.renderer = r
		m.updateViewport()

	case streamToken:
		if msg.err != nil {
			m.loading = false
			m.messages[len(m.messages)-1].content = "Error: " + msg.err.Error()
			m.updateViewport()
			return m, nil
		}
		m.messages[len(m.messages)-1].content += msg.token
		m.updateViewport()
		return m, nil

	case generationResult:
		m.loading = false
		if msg.err != nil {
			if m.messages[len(m.messages)-1].content == "" {
				m.messages[len(m.messages)-1].content = "Error: " + msg.err.Error()
			}
		} else {
			stats := msg.stats
			m.messages[len(m.messages)-1].stats = &stats
			m.messages[len(m.messages)-1].duration = time.Since(msg.start)
		}
		m.updateViewport()
		return m, nil

	case spinner.TickMsg:
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, spCmd

	case errMsg:
		return m, nil
	}

	m.textarea, taCmd = m.textarea.Update(msg)

	val := m.textarea.Value()
	if strings.HasPrefix(val, "/") {
		m.suggestions = []string{}
		for _, cmd := range availableCommands {
			if strings.HasPrefix(cmd, val) {
				m.suggestions = append(m.suggestions, cmd)
			}
		}
		m.showSuggestions = len(m.suggestions) > 0
		if m.suggestionIdx >= len(m.suggestions) {
			m.suggestionIdx = 0
		}
	} else {
		m.showSuggestions = false
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(taCmd, vpCmd)
}

func (m *tuiModel) handleMenuSelection() tea.Cmd {
	switch m.menuIdx {
	case 0:
		m.messages = []message{}
		m.viewport.SetContent("")
	case 1:
		m.opts.ShowStats = !m.opts.ShowStats
		m.messages = append(m.messages, message{role: "System", content: fmt.Sprintf("Stats: %v", m.opts.ShowStats)})
	case 2:
		return tea.Quit
	}
	m.updateViewport()
	return nil
}

func (m *tuiModel) handleLocalCommand(low, raw string) (bool, tea.Cmd) {
	if !strings.HasPrefix(low, "/") {
		return false, nil
	}

	switch {
	case low == "/clear":
		m.messages = []message{}
		m.viewport.SetContent("")
		return true, nil

	case low == "/help":
		m.messages = append(m.messages, message{role: "System", content: `
### Available Commands
- **/help**: Show this help message
- **/stats**: Toggle per-turn token/timing stats
- **/set <param> <value>**: Update temperature, top_k, or max_tokens
- **/clear**: Clear conversation history
- **exit/quit**: Close the application
`})
		m.updateViewport()
		return true, nil

	case low == "/stats":
		m.opts.ShowStats = !m.opts.ShowStats
		m.messages = append(m.messages, message{role: "System", content: fmt.Sprintf("Stats: %v", m.opts.ShowStats)})
		m.updateViewport()
		return true, nil

	case strings.HasPrefix(low, "/set "):
		parts := strings.SplitN(strings.TrimSpace(raw[5:]), " ", 2)
		if len(parts) < 2 {
			m.messages = append(m.messages, message{role: "System", content: "Usage: /set <temperature|top_k|max_tokens> <value>"})
		} else {
			applySetCommand(m.engine, parts[0], parts[1])
			m.messages = append(m.messages, message{role: "System", content: fmt.Sprintf("%s = %s", parts[0], parts[1])})
		}
		m.updateViewport()
		return true, nil

	case low == "/exit" || low == "/quit" || low == "exit" || low == "quit":
		return true, tea.Quit
	}

	return false, nil
}

func (m *tuiModel) updateViewport() {
	var sb strings.Builder

	for i, msg := range m.messages {
		switch msg.role {
		case "System":
			sb.WriteString(systemStyle.Render("SYSTEM") + "\n")
			sb.WriteString(msg.content + "\n\n")

		case "User":
			sb.WriteString(userStyle.Render("YOU") + "\n")
			sb.WriteString(msg.content + "\n\n")

		case "wizgo":
			sb.WriteString(botStyle.Render("WIZGO") + "\n")

			rendered := msg.content
			if msg.content != "" {
				if r, err := m.renderer.Render(msg.content); err == nil {
					rendered = r
				}
			}
			sb.WriteString(rendered)

			if i == len(m.messages)-1 && !m.loading && m.opts.ShowStats && msg.stats != nil {
				statsStr := fmt.Sprintf("prompt=%d | predicted=%d | %s",
					msg.stats.PromptTokens, msg.stats.PredictTokens,
					msg.duration.Truncate(time.Millisecond))
				sb.WriteString("\n" + statsStyle.Render(statsStr) + "\n")
			}
			sb.WriteString("\n")

		default:
			sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true).Render(msg.role) + "\n")
			sb.WriteString(msg.content + "\n\n")
		}
	}

	if m.loading {
		sb.WriteString("\n" + m.spinner.View() + streamingStyle.Render(" Generating..."))
	}

	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

// runGeneration feeds input through the shared session and streams each
// token back to the Bubble Tea program via program.Send, mirroring the
// teacher's runPipeline command that pushed runtime.StreamEvent values the
// same way.
func (m tuiModel) runGeneration(input string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		bias := m.engine.SelectedBias(1)
		params := m.engine.InferenceParameters(bias)
		rng := newRNG(time.Now().UnixNano())

		prompt := replPromptMarker + input + replAssistantMarker
		stats, err := generate.InferenceWithPrompt(m.sess, m.engine.Model, params, prompt, rng, func(tok generate.Token) error {
			if m.program != nil {
				m.program.Send(streamToken{token: tok.Text})
			}
			return nil
		})
		return generationResult{stats: stats, err: err, start: start}
	}
}

func (m tuiModel) View() string {
	if !m.ready {
		return "\n  Initializing wizgo..."
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render(" wizgo "),
		subtitleStyle.Render("MPT/Replit-Code inference"),
	)

	vp := borderStyle.Render(m.viewport.View())

	inputArea := m.textarea.View()
	if m.showSuggestions && len(m.suggestions) > 0 {
		var suggBuilder strings.Builder
		for i, s := range m.suggestions {
			if i == m.suggestionIdx {
				suggBuilder.WriteString(suggestionStyle.Render(s) + "\n")
			} else {
				suggBuilder.WriteString(normalSuggestionStyle.Render(s) + "\n")
			}
		}
		inputArea = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#00D9FF")).
				Padding(0, 1).
				Render(suggBuilder.String()),
			inputArea,
		)
	}

	input := inputBorderStyle.Render(inputArea)
	mainView := fmt.Sprintf("%s\n%s\n%s", header, vp, input)

	if m.menuOpen {
		var menuBuilder strings.Builder
		menuBuilder.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00D9FF")).Render("OPTIONS") + "\n\n")
		for i, opt := range menuOptions {
			if i == m.menuIdx {
				menuBuilder.WriteString(lipgloss.NewStyle().
					Background(lipgloss.Color("#00D9FF")).
					Foreground(lipgloss.Color("#1a1a2e")).
					Bold(true).
					Padding(0, 1).
					Render("> "+opt) + "\n")
			} else {
				menuBuilder.WriteString(lipgloss.NewStyle().
					Foreground(lipgloss.Color("#a0a0b0")).
					Padding(0, 1).
					Render("  "+opt) + "\n")
			}
		}

		menuPopup := lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#00D9FF")).
			Padding(1, 2).
			Render(menuBuilder.String())

		mainView = lipgloss.Place(m.width, m.height,
			lipgloss.Center, lipgloss.Center,
			menuPopup,
			lipgloss.WithWhitespaceChars(" "),
			lipgloss.WithWhitespaceForeground(lipgloss.Color("#0a0a14")),
		)
	}

	help := helpStyle.Render(fmt.Sprintf("Ctrl+S Send | Ctrl+O Menu | /help Commands | Stats: %v", m.opts.ShowStats))

	return mainView + "\n" + help
}

// RunTui executes the Bubble Tea interface for the repl command's --tui mode.
func RunTui(ctx context.Context, cfg config.Config, opts ReplOptions) int {
	_ = ctx

	engine, err := NewEngine(cfg, nil)
	if err != nil {
		fmt.Printf("failed to initialize engine: %v\n", err)
		return 1
	}
	defer engine.Close()

	sess, err := engine.NewSession()
	if err != nil {
		fmt.Printf("failed to start session: %v\n", err)
		return 1
	}
	defer sess.Close()

	m := initialModel(engine, sess, cfg, opts)
	p := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	m.program = p

	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v", err)
		return 1
	}
	return 0
}
