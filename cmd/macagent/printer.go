package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/hrygo/macagent/server/service/assistant"
	"github.com/hrygo/macagent/store"
)

var (
	replyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	infoStyle    = lipgloss.NewStyle().Faint(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	headingStyle = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Width(14).Faint(true)
)

// printer renders CLI output, styled only when writing to a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: w, styled: styled}
}

func (p *printer) render(style lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return style.Render(text)
}

func (p *printer) line(style lipgloss.Style, text string) {
	fmt.Fprintln(p.w, p.render(style, text))
}

func (p *printer) info(text string)    { p.line(infoStyle, text) }
func (p *printer) warn(text string)    { p.line(warnStyle, text) }
func (p *printer) heading(text string) { p.line(headingStyle, text) }
func (p *printer) plain(text string)   { fmt.Fprintln(p.w, text) }

func (p *printer) prompt(text string) {
	fmt.Fprint(p.w, "\n"+p.render(headingStyle, text))
}

func (p *printer) reply(r *assistant.Reply) {
	if r.Failed {
		p.line(failureStyle, "❌ "+r.Text)
		return
	}
	p.line(replyStyle, "🤖 "+r.Text)
}

func (p *printer) field(label string, value any) {
	fmt.Fprintf(p.w, "  %s %v\n", p.render(labelStyle, label), value)
}

// summary prints a session; full shows the complete id.
func (p *printer) summary(s *store.SessionSummary, full bool) {
	id := shortID(s.SessionID)
	if full {
		id = s.SessionID
	}
	userID := s.UserID
	if userID == "" {
		userID = "N/A"
	}
	p.field("세션 ID:", id)
	p.field("사용자 ID:", userID)
	p.field("생성 시간:", s.CreatedAt)
	p.field("마지막 활동:", s.LastActive)
	p.field("메시지 수:", s.MessageCount)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
