package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"brainbolt/internal/domain"
)

// QueryTimeout bounds a single interactive query.
const QueryTimeout = 30 * time.Second

// item is one ranked hit resolved to its text or image payload.
type item struct {
	hit   domain.RankedHit
	text  string
	image *domain.ImageRef
}

// Model is the Bubble Tea model for the interactive query screen.
type Model struct {
	retriever domain.Retriever
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	items     []item
	summary   string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a TUI over an already indexed session. summary is shown under
// the header.
func New(r domain.Retriever, topK int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your material and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{retriever: r, topK: topK, input: ti, viewport: vp, summary: summary, status: "Indexed. Type to search."}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m = m.runQuery(q)
				return m, nil
			}
		case "down":
			if len(m.items) > 0 {
				m.cursor = (m.cursor + 1) % len(m.items)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if len(m.items) > 0 {
				m.cursor = (m.cursor - 1 + len(m.items)) % len(m.items)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) runQuery(q string) Model {
	ctx, cancel := context.WithTimeout(context.Background(), QueryTimeout)
	defer cancel()
	bundle, err := m.retriever.Query(ctx, q, m.topK, domain.QueryOptions{})
	if err != nil {
		m.status = "Error: " + err.Error()
		m.items = nil
	} else {
		m.items = resolve(bundle)
		m.cursor = 0
		m.lastQuery = q
		m.status = fmt.Sprintf("%d texts, %d images for %q", len(bundle.Texts), len(bundle.Images), q)
	}
	m.viewport.SetContent(m.renderCurrent())
	return m
}

// resolve walks the merged order and attaches each hit's payload by rank.
func resolve(b domain.ContextBundle) []item {
	texts := make(map[int]string, len(b.Texts))
	for _, t := range b.Texts {
		texts[t.Rank] = t.Text
	}
	images := make(map[int]*domain.ImageRef, len(b.Images))
	for i := range b.Images {
		images[b.Images[i].Rank] = &b.Images[i]
	}
	out := make([]item, 0, len(b.Hits))
	for _, h := range b.Hits {
		it := item{hit: h}
		if h.Kind == domain.KindImage {
			it.image = images[h.Rank]
		} else {
			it.text = texts[h.Rank]
		}
		out = append(out, it)
	}
	return out
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("BrainBolt")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if len(m.items) == 0 {
		return "No results yet."
	}
	it := m.items[m.cursor]
	title := fmt.Sprintf("Result %d/%d  %s  page %d  score=%.3f", m.cursor+1, len(m.items), it.hit.Kind, it.hit.Page, it.hit.Score)
	if it.image != nil {
		return title + "\n\n" + imageStyle.Render(fmt.Sprintf("[image %s, %.1f KB]", it.image.ID, float64(len(it.image.Data))/1024))
	}
	return title + "\n\n" + highlightBestSentence(it.text, m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	imageStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Italic(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sent = highlightStyle.Render(sent)
		}
		sentences[i] = sent
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
