package tui

import (
	"fmt"
	"strings"

	"github.com/TannerBurns/termai/internal/agent/checklist"
	"github.com/TannerBurns/termai/internal/util"
)

func (m Model) View() string {
	if !m.ready {
		return "starting monitor..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderStatus(),
		m.renderGoal(),
		m.renderChecklist(),
		logStyle.Render(m.viewport.View()),
		m.renderNotice(),
		m.renderApproval(),
		m.renderFeedbackInput(),
		m.renderHelp(),
	}

	var out []string
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}

func (m Model) renderHeader() string {
	name := m.sess.Name()
	if name == "" {
		name = m.sess.ID()
	}
	title := fmt.Sprintf("termai  %s  [%s]", name, m.sess.Mode())
	return headerStyle.Width(max(m.width, 0)).Render(title)
}

func (m Model) renderStatus() string {
	counters := mutedStyle.Render(fmt.Sprintf("iter %d  tools %d  cmds %d",
		m.state.Counters.Iterations, m.state.Counters.ToolCalls, m.state.Counters.CommandsRun))

	if m.active {
		label := m.phase
		if label == "" {
			label = strings.ReplaceAll(m.state.Phase, "_", " ")
		}
		return m.spinner.View() + " " + phaseStyle.Render(label) + "  " + counters
	}

	if m.state.Summary != "" {
		style := summaryStyle
		if m.failed {
			style = errorStyle
		}
		return m.fit(style.Render(m.state.Summary) + "  " + counters)
	}
	if m.runErr != nil {
		return m.fit(errorStyle.Render(m.runErr.Error()))
	}
	return mutedStyle.Render("idle")
}

func (m Model) renderGoal() string {
	if m.goal == "" {
		return ""
	}
	return m.fit(goalStyle.Render("goal: ") + m.goal)
}

func (m Model) renderChecklist() string {
	items := m.state.Checklist.Items
	if len(items) == 0 {
		return ""
	}

	resolved := 0
	for _, it := range items {
		if it.Status == checklist.StatusCompleted || it.Status == checklist.StatusSkipped {
			resolved++
		}
	}

	var b strings.Builder
	b.WriteString(mutedStyle.Render(fmt.Sprintf("checklist %d/%d", resolved, len(items))))
	for _, it := range items {
		b.WriteString("\n")
		b.WriteString(m.fit(renderItem(it)))
	}
	return b.String()
}

func renderItem(it checklist.Item) string {
	var marker string
	var style = itemPendingStyle
	switch it.Status {
	case checklist.StatusCompleted:
		marker, style = "[x]", itemCompletedStyle
	case checklist.StatusInProgress:
		marker, style = "[>]", itemInProgressStyle
	case checklist.StatusFailed:
		marker, style = "[!]", itemFailedStyle
	case checklist.StatusSkipped:
		marker, style = "[-]", itemSkippedStyle
	default:
		marker = "[ ]"
	}
	return style.Render(fmt.Sprintf("%s %d. %s", marker, it.ID, it.Description))
}

func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	return m.fit(noticeStyle.Render(m.notice))
}

// fit caps a rendered line to the terminal width. The fixed sections
// must never wrap; a wrapped line would throw off the height handed to
// the viewport.
func (m Model) fit(s string) string {
	if m.width <= 0 {
		return s
	}
	return util.TruncateANSI(s, m.width)
}

func (m Model) renderApproval() string {
	if m.pending == nil {
		return ""
	}

	if m.inputTo == inputEditCommand {
		body := approvalTitleStyle.Render("Edit command") + "\n" + m.input.View()
		return approvalStyle.Render(body)
	}

	inner := max(m.width-approvalStyle.GetHorizontalFrameSize(), 10)
	var b strings.Builder
	b.WriteString(approvalTitleStyle.Render("Approval required"))
	b.WriteString("\n" + util.TruncateANSI("$ "+m.pending.command, inner))
	if m.pending.reason != "" {
		b.WriteString("\n" + util.TruncateANSI(mutedStyle.Render(m.pending.reason), inner))
	}
	b.WriteString("\n" + helpLine([][2]string{
		{"y", "approve"},
		{"n", "reject"},
		{"e", "edit"},
	}))
	return approvalStyle.Render(b.String())
}

func (m Model) renderFeedbackInput() string {
	if m.inputTo != inputFeedback {
		return ""
	}
	return inputStyle.Render(m.input.View())
}

func (m Model) renderHelp() string {
	if m.inputTo != inputNone {
		return helpLine([][2]string{
			{"enter", "submit"},
			{"esc", "cancel"},
		})
	}
	if m.active {
		return helpLine([][2]string{
			{"q", "cancel run"},
			{"f", "feedback"},
			{"↑/↓", "scroll"},
		})
	}
	return helpLine([][2]string{
		{"q", "quit"},
		{"↑/↓", "scroll"},
	})
}

func helpLine(entries [][2]string) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, helpKeyStyle.Render(e[0])+" "+mutedStyle.Render(e[1]))
	}
	return strings.Join(parts, mutedStyle.Render("  "))
}

// scrollback is the viewport content: the streamed reply when one is
// in flight, otherwise the context log.
func (m Model) scrollback() string {
	if m.reply != "" {
		return m.reply
	}
	if len(m.state.Log) == 0 {
		return mutedStyle.Render("(no activity yet)")
	}
	lines := make([]string, 0, len(m.state.Log))
	for _, entry := range m.state.Log {
		lines = append(lines, entry.Text)
	}
	return strings.Join(lines, "\n")
}
