package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"museflow/internal/feedback"
	"museflow/internal/models"
	"museflow/internal/writing"
)

var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorYellow = lipgloss.Color("#fabd2f")
	colorRed    = lipgloss.Color("#fb4934")
	colorDim    = lipgloss.Color("#928374")
	colorHeader = lipgloss.Color("#fe8019")

	styleGreen  = lipgloss.NewStyle().Foreground(colorGreen)
	styleYellow = lipgloss.NewStyle().Foreground(colorYellow)
	styleRed    = lipgloss.NewStyle().Foreground(colorRed)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleHeader = lipgloss.NewStyle().Foreground(colorHeader).Bold(true)
	styleBold   = lipgloss.NewStyle().Bold(true)
)

func header(text string) string {
	return fmt.Sprintf("%s\n%s", styleHeader.Render(text), styleDim.Render(strings.Repeat("─", lipgloss.Width(text))))
}

func scoreStyle(v int) lipgloss.Style {
	switch {
	case v >= 90:
		return styleGreen
	case v >= 75:
		return styleYellow
	default:
		return styleRed
	}
}

func formatTopics(topics []models.Topic) string {
	if len(topics) == 0 {
		return styleDim.Render("没有找到题目")
	}
	var b strings.Builder
	b.WriteString(header("写作题目"))
	b.WriteByte('\n')
	for _, t := range topics {
		fmt.Fprintf(&b, "%s  %s %s\n", styleBold.Render(fmt.Sprintf("%3s", t.ID)), t.Title, styleDim.Render("["+string(t.Category)+"]"))
		fmt.Fprintf(&b, "     %s\n", styleDim.Render(t.Prompt))
	}
	return b.String()
}

func formatTopic(t models.Topic) string {
	var b strings.Builder
	b.WriteString(header(t.Title))
	fmt.Fprintf(&b, "\n%s\n", t.Prompt)
	if len(t.Angles) > 0 {
		fmt.Fprintf(&b, "%s %s\n", styleDim.Render("角度:"), strings.Join(t.Angles, " / "))
	}
	return b.String()
}

func formatSessions(sessions []models.WritingSession) string {
	if len(sessions) == 0 {
		return styleDim.Render("还没有写作记录")
	}
	var b strings.Builder
	b.WriteString(header("写作记录"))
	b.WriteByte('\n')
	for _, s := range sessions {
		status := styleYellow.Render("草稿")
		if s.Status == models.StatusCompleted {
			status = styleGreen.Render("完成")
		}
		title := s.TopicID
		if s.Topic != nil {
			title = s.Topic.Title
		}
		fmt.Fprintf(&b, "%s  %s %5d字  %s\n",
			styleDim.Render(s.CreatedAt.Local().Format("2006-01-02 15:04")), status, s.WordCount, title)
		fmt.Fprintf(&b, "    %s\n", styleDim.Render(s.ID))
	}
	return b.String()
}

func formatFeedback(res feedback.Result) string {
	fb := res.Feedback
	var b strings.Builder
	b.WriteString(header("写作反馈"))
	b.WriteByte('\n')
	if res.Fallback {
		b.WriteString(styleDim.Render("(模型暂不可用，以下为本地生成的反馈)"))
		b.WriteByte('\n')
	}
	rows := []struct {
		label string
		score int
	}{
		{"创意", fb.Scores.Creativity},
		{"情感", fb.Scores.Emotion},
		{"表达", fb.Scores.Expression},
		{"逻辑", fb.Scores.Logic},
		{"词汇", fb.Scores.Vocabulary},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s %s %s\n", r.label, scoreStyle(r.score).Render(fmt.Sprintf("%3d", r.score)), bar(r.score, 100, 20))
	}
	fmt.Fprintf(&b, "\n%s\n", styleGreen.Render(fb.Encouragement))
	for i, s := range fb.Suggestions {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
	}
	if s := fb.ImprovedSentence; s != nil {
		fmt.Fprintf(&b, "\n%s %s\n%s %s\n", styleDim.Render("原句:"), s.Original, styleDim.Render("改写:"), s.Improved)
	}
	return b.String()
}

func formatStats(st models.UserStatistics, tz string, now time.Time) string {
	var b strings.Builder
	b.WriteString(header("写作统计"))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  总篇数  %d\n  总字数  %d\n  连续天数  %s\n",
		st.TotalSessions, st.TotalWords, styleGreen.Render(fmt.Sprintf("%d", st.CurrentStreak)))
	if st.LastActivityAt != nil {
		fmt.Fprintf(&b, "  最近活动  %s\n", st.LastActivityAt.Local().Format("2006-01-02 15:04"))
	}
	avgs := []struct {
		label string
		v     *float64
	}{
		{"创意", st.AverageCreativity},
		{"情感", st.AverageEmotion},
		{"表达", st.AverageExpression},
		{"逻辑", st.AverageLogic},
		{"词汇", st.AverageVocabulary},
	}
	if st.AverageCreativity != nil {
		b.WriteString("\n  平均分\n")
		for _, a := range avgs {
			fmt.Fprintf(&b, "  %s %5.1f %s\n", a.label, *a.v, bar(int(*a.v+0.5), 100, 20))
		}
	}
	if len(st.ChartData) > 0 {
		daily := map[string]int{}
		for _, p := range st.ChartData {
			daily[p.CreatedAt.Local().Format("01-02")] += p.WordCount
		}
		peak := 0
		for _, n := range daily {
			peak = max(peak, n)
		}
		b.WriteString("\n  近7天字数\n")
		for i := 6; i >= 0; i-- {
			day := now.AddDate(0, 0, -i).Local().Format("01-02")
			fmt.Fprintf(&b, "  %s %s %d\n", day, bar(daily[day], peak, 20), daily[day])
		}
	}
	if tz != "" {
		fmt.Fprintf(&b, "\n%s\n", styleDim.Render("按 "+tz+" 计算日期"))
	}
	return b.String()
}

func formatStatus(st writing.SaveStatus) string {
	switch {
	case st.Saving:
		return styleDim.Render("保存中…")
	case st.Error != "":
		return styleRed.Render(st.Error)
	case st.LastSavedAt != nil:
		return styleDim.Render("已保存 " + st.LastSavedAt.Local().Format("15:04:05"))
	default:
		return ""
	}
}

func bar(v, peak, width int) string {
	if peak <= 0 || v <= 0 {
		return styleDim.Render(strings.Repeat("·", width))
	}
	n := min(v*width/peak, width)
	return styleGreen.Render(strings.Repeat("█", n)) + styleDim.Render(strings.Repeat("·", width-n))
}
