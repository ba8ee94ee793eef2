package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dearie-ai/dearie/internal/store"
	"github.com/dearie-ai/dearie/pkg/types"
)

type tickMsg time.Time
type dashboardMsg struct {
	stats      store.Stats
	inferences []store.InferenceRow
	emotions   []store.EmotionRow
	err        error
	duration   time.Duration
}

type dashboardStore interface {
	Stats(ctx context.Context) (store.Stats, error)
	RecentInferences(ctx context.Context, limit int) ([]store.InferenceRow, error)
	RecentEmotionEvents(ctx context.Context, limit int) ([]store.EmotionRow, error)
}

type model struct {
	ctx             context.Context
	st              dashboardStore
	stats           store.Stats
	inferences      []store.InferenceRow
	emotions        []store.EmotionRow
	lastErr         error
	lastTick        time.Time
	logLines        []string
	maxLogs         int
	inferencesLimit int
	emotionsLimit   int
	width           int
	height          int
}

// Run starts a lightweight local admin dashboard.
func Run(ctx context.Context, st dashboardStore) error {
	m := model{
		ctx:             ctx,
		st:              st,
		maxLogs:         10,
		inferencesLimit: 8,
		emotionsLimit:   8,
	}
	m = m.appendLog("admin UI started")
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchDashboardCmd(m.ctx, m.st, m.inferencesLimit, m.emotionsLimit), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m = m.appendLog("received quit signal")
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.lastTick = time.Time(msg)
		return m, tea.Batch(fetchDashboardCmd(m.ctx, m.st, m.inferencesLimit, m.emotionsLimit), tickCmd())
	case dashboardMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.stats = msg.stats
			m.inferences = msg.inferences
			m.emotions = msg.emotions
			m = m.appendLog(fmt.Sprintf(
				"refresh ok users=%d msgs=%d emo=%d inf=%d (%s)",
				msg.stats.Users,
				msg.stats.Messages,
				msg.stats.Emotions,
				msg.stats.Inferences,
				formatDuration(msg.duration),
			))
		} else {
			m = m.appendLog(fmt.Sprintf("refresh error: %v", msg.err))
		}
	}
	return m, nil
}

func (m model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Render("dearie admin")
	meta := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("q to quit • refresh every 2s")

	statsBody := m.renderStats()
	logBody := "(no log events yet)"
	if len(m.logLines) > 0 {
		logBody = strings.Join(m.logLines, "\n")
	}

	paneWidth := 54
	if m.width > 0 {
		paneWidth = max(38, (m.width-3)/2)
	}
	paneHeight := 9
	if m.height > 0 {
		paneHeight = max(8, (m.height-8)/2)
	}

	topRow := joinColumns(
		renderPane("Stats", statsBody, paneWidth, paneHeight),
		renderPane("General Logs", logBody, paneWidth, paneHeight),
	)
	bottomRow := joinColumns(
		renderPane("Recent Inferences", formatInferencePane(m.inferences), paneWidth, paneHeight),
		renderPane("Recent Emotions", formatEmotionPane(m.emotions), paneWidth, paneHeight),
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		meta,
		"",
		topRow,
		bottomRow,
	)
}

func (m model) renderStats() string {
	body := fmt.Sprintf(
		"Users:          %d\nMessages:       %d\nEmotions:       %d\nInferences:     %d\nLast refresh:   %s",
		m.stats.Users,
		m.stats.Messages,
		m.stats.Emotions,
		m.stats.Inferences,
		formatTime(m.lastTick),
	)
	if m.lastErr != nil {
		body += "\n\nLast error: " + truncateText(compactWhitespace(m.lastErr.Error()), 120)
	}
	return body
}

func fetchDashboardCmd(ctx context.Context, st dashboardStore, infLimit, emoLimit int) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		s, err := st.Stats(ctx)
		if err != nil {
			return dashboardMsg{err: err, duration: time.Since(start)}
		}

		inferences, err := st.RecentInferences(ctx, infLimit)
		if err != nil {
			return dashboardMsg{stats: s, err: err, duration: time.Since(start)}
		}

		emotions, err := st.RecentEmotionEvents(ctx, emoLimit)
		if err != nil {
			return dashboardMsg{stats: s, inferences: inferences, err: err, duration: time.Since(start)}
		}

		return dashboardMsg{
			stats:      s,
			inferences: inferences,
			emotions:   emotions,
			duration:   time.Since(start),
		}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func (m model) appendLog(line string) model {
	if strings.TrimSpace(line) == "" {
		return m
	}
	entry := fmt.Sprintf("[%s] %s", time.Now().UTC().Format("15:04:05"), line)
	m.logLines = append(m.logLines, entry)
	if m.maxLogs <= 0 {
		m.maxLogs = 10
	}
	if len(m.logLines) > m.maxLogs {
		m.logLines = m.logLines[len(m.logLines)-m.maxLogs:]
	}
	return m
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

func renderPane(title, body string, width, height int) string {
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
	if width > 0 {
		style = style.Width(width)
	}
	if height > 0 {
		style = style.Height(height)
	}
	return style.Render(title + "\n\n" + body)
}

func joinColumns(left, right string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func formatInferencePane(rows []store.InferenceRow) string {
	if len(rows) == 0 {
		return "(no inferences yet)"
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		move := fmt.Sprintf("%s→%s", types.StageName(row.CurrentStage), types.StageName(row.SuggestedStage))
		if row.CurrentStage == row.SuggestedStage {
			move = types.StageName(row.CurrentStage) + " 유지"
		}
		line := fmt.Sprintf(
			"[%s] %-10s %-14s %.2f %s",
			formatClock(row.CreatedAt),
			truncateText(row.UserID, 10),
			truncateText(move, 14),
			row.Confidence,
			truncateText(compactWhitespace(row.Reasoning), 40),
		)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatEmotionPane(rows []store.EmotionRow) string {
	if len(rows) == 0 {
		return "(no emotions yet)"
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line := fmt.Sprintf(
			"[%s] %-10s %-6s %2d/10 %s",
			formatClock(row.CreatedAt),
			truncateText(row.UserID, 10),
			truncateText(row.EmotionType, 6),
			row.Intensity,
			row.Confidence,
		)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.UTC().Format("15:04:05")
}

func truncateText(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

func compactWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
