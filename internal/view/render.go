package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/spacesedan/feedbot/internal/aggregate"
)

const (
	barWidth     = 30
	maxTextPosts = 10
)

// RenderText writes a terminal rendering of in: one bar chart per
// distribution followed by the newest posts.
func RenderText(w io.Writer, in Insights) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Insights for %s\n", in.Brand)
	if in.Job != nil {
		fmt.Fprintf(&sb, "Job: %s", in.Job.Status)
		if in.Job.Error != "" {
			fmt.Fprintf(&sb, " (%s)", in.Job.Error)
		}
		sb.WriteString("\n")
	}

	switch in.State {
	case StateLoading:
		sb.WriteString("Loading results...\n")
		_, err := io.WriteString(w, sb.String())
		return err
	case StateEmpty:
		fmt.Fprintf(&sb, "%s. Still polling for %s.\n", EmptyMessage, in.Brand)
		_, err := io.WriteString(w, sb.String())
		return err
	}

	if in.UpdatedAt != nil {
		fmt.Fprintf(&sb, "%d posts, updated %s\n", in.PostCount, in.UpdatedAt.Format("15:04:05"))
	}

	writeChart(&sb, "Sentiment", in.Sentiment)
	writeChart(&sb, "Emotions", in.Emotions)
	writeChart(&sb, "Topics", in.Topics)

	sb.WriteString("\nPosts\n")
	for i, p := range in.Posts {
		if i == maxTextPosts {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(in.Posts)-maxTextPosts)
			break
		}
		fmt.Fprintf(&sb, "  [%s] %s: %s\n", orDash(p.Platform), orDash(p.Sentiment), p.Preview)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeChart(sb *strings.Builder, title string, dist aggregate.Distribution) {
	fmt.Fprintf(sb, "\n%s\n", title)
	if len(dist) == 0 {
		sb.WriteString("  (none)\n")
		return
	}

	maxCount, labelWidth := 0, 0
	for _, b := range dist {
		maxCount = max(maxCount, b.Count)
		labelWidth = max(labelWidth, len([]rune(b.Label)))
	}

	for _, b := range dist {
		n := 0
		if maxCount > 0 {
			n = b.Count * barWidth / maxCount
		}
		if b.Count > 0 && n == 0 {
			n = 1
		}
		fmt.Fprintf(sb, "  %-*s %s %d\n", labelWidth, b.Label, strings.Repeat("█", n), b.Count)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
