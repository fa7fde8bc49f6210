package tui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Iron-Ham/lance/internal/api"
	"github.com/Iron-Ham/lance/internal/event"
	"github.com/Iron-Ham/lance/internal/tui/styles"
)

// View renders the model
func (m Model) View() string {
	if m.final != nil {
		return renderFinal(*m.final) + "\n"
	}
	if m.err != nil {
		return styles.ErrorMsg.Render("Couldn't open the session: "+m.err.Error()) + "\n"
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render("lance") + "  " + styles.Muted.Render(m.ctrl.ID()) + "\n\n")
	b.WriteString(m.renderStatus())

	if m.connectivity != "" {
		b.WriteString("\n" + styles.WarningMsg.Render(m.connectivity) + " " + styles.Muted.Render("Press r to retry.") + "\n")
	}
	if m.failure != "" {
		b.WriteString("\n" + styles.ErrorMsg.Render(m.failure) + "\n")
	}
	if len(m.questions) > 0 {
		b.WriteString("\n" + renderQuestions(m.questions) + "\n")
	}
	if len(m.artifacts) > 0 {
		b.WriteString("\n" + renderArtifacts(m.artifacts) + "\n")
	}
	if m.expiry != "" {
		b.WriteString("\n" + styles.Warning.Render(m.expiry) + "\n")
	}
	if m.notice.text != "" {
		b.WriteString("\n" + renderNotice(m.notice) + "\n")
	}

	switch m.mode {
	case modeAnswer:
		b.WriteString("\n" + m.input.View() + "\n")
		b.WriteString(styles.HelpBar.Render(helpLine([][2]string{{"enter", "send"}, {"esc", "cancel"}})))
	case modeConfirmDelete:
		b.WriteString("\n" + styles.ConfirmBanner.Render("Delete this session and all of its files? (y/N)") + "\n")
	default:
		b.WriteString(styles.HelpBar.Render(m.help()))
	}
	return b.String() + "\n"
}

func (m Model) renderStatus() string {
	var b strings.Builder
	b.WriteString(styles.Badge(string(m.phase)))
	if step := m.status.StepLabel(); step != "" && m.phase == event.PhaseProcessing {
		b.WriteString("  " + styles.Text.Render(step))
	}
	b.WriteString("\n")

	if m.phase != "" {
		b.WriteString(m.bar.ViewAs(float64(m.status.Progress)/100) + "\n")
	}
	if msg := m.status.DetailedStatusMessage; msg != "" {
		b.WriteString(styles.Subtitle.Render(msg) + "\n")
	}
	if steps := renderSteps(m.status); steps != "" {
		b.WriteString(steps + "\n")
	}
	return b.String()
}

func renderSteps(s api.SessionStatus) string {
	var parts []string
	for _, step := range s.CompletedSteps {
		parts = append(parts, styles.Secondary.Render("✓ "+step))
	}
	for _, step := range s.FailedSteps {
		parts = append(parts, styles.Error.Render("✗ "+step))
	}
	return strings.Join(parts, "  ")
}

func renderQuestions(qs []api.Question) string {
	var b strings.Builder
	b.WriteString(styles.SectionTitle.Render("Questions") + "\n")
	for i, q := range qs {
		fmt.Fprintf(&b, "%d. %s", i+1, q.Question)
		if q.Agent != "" {
			b.WriteString(styles.Muted.Render(" (" + q.Agent + ")"))
		}
		if q.Context != "" {
			b.WriteString("\n   " + styles.Subtitle.Render(q.Context))
		}
		if i < len(qs)-1 {
			b.WriteString("\n")
		}
	}
	return styles.QuestionBox.Render(b.String())
}

func renderArtifacts(as []api.Artifact) string {
	var b strings.Builder
	b.WriteString(styles.SectionTitle.Render("Results") + "\n")
	for i, a := range as {
		b.WriteString("• " + a.Filename)
		if a.Size > 0 {
			b.WriteString(styles.Muted.Render("  " + humanize.Bytes(uint64(a.Size))))
		}
		if i < len(as)-1 {
			b.WriteString("\n")
		}
	}
	return styles.ContentBox.Render(b.String())
}

func renderNotice(n notice) string {
	switch n.level {
	case levelSuccess:
		return styles.SuccessMsg.Render(n.text)
	case levelWarning:
		return styles.WarningMsg.Render(n.text)
	case levelError:
		return styles.ErrorMsg.Render(n.text)
	default:
		return styles.Muted.Render(n.text)
	}
}

func renderFinal(e event.NavigateEvent) string {
	switch e.Reason {
	case event.NavigateDeleted, event.NavigateAlreadyGone:
		return styles.SuccessMsg.Render(e.Message)
	case event.NavigateDeleteFailed:
		return styles.ErrorMsg.Render(e.Message)
	default:
		return styles.WarningMsg.Render(e.Message)
	}
}

func (m Model) help() string {
	var keys [][2]string
	if !m.starting && (m.phase == "" || m.phase == event.PhaseUploading) {
		keys = append(keys, [2]string{"s", "start"})
	}
	keys = append(keys, [2]string{"r", "refresh"})
	if len(m.questions) > 0 && !m.submitting {
		keys = append(keys, [2]string{"a", "answer"})
	}
	if !m.deleting && m.phase != event.PhaseDeleted {
		keys = append(keys, [2]string{"d", "delete"})
	}
	keys = append(keys, [2]string{"q", "quit"})
	return helpLine(keys)
}

func helpLine(keys [][2]string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = styles.HelpKey.Render(k[0]) + " " + k[1]
	}
	return strings.Join(parts, "  ")
}
