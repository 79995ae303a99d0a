package journal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayout is the date-only format used in session blocks.
const dateLayout = "2006-01-02"

const (
	dateLinePrefix   = "**Date**: "
	commitLinePrefix = "**Commit**: "
)

// sessionHeaderRe matches the line that introduces a session block.
var sessionHeaderRe = regexp.MustCompile(`^## Session ([0-9]+): (.+)$`)

// Session is one recorded unit of completed work. Numbers are assigned
// by the manager and are strictly increasing across all of a
// developer's journal files.
type Session struct {
	// Number is the global session number. AddSession overwrites it.
	Number int
	// Title is the one-line description shown in the session header.
	Title string
	// Date is the day the work was completed, at date precision.
	Date time.Time
	// Commit is an optional VCS commit hash tied to the session.
	Commit string
	// Summary is an optional one-paragraph recap.
	Summary string
	// Content is optional free-form detail after the summary.
	Content string
}

// formatBlock renders the session as an appendable journal block. The
// block ends with a blank separator line.
func (s Session) formatBlock() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Session %d: %s\n", s.Number, s.Title)
	fmt.Fprintf(&b, "%s%s\n", dateLinePrefix, s.Date.Format(dateLayout))
	if s.Commit != "" {
		fmt.Fprintf(&b, "%s%s\n", commitLinePrefix, s.Commit)
	}
	if s.Summary != "" {
		b.WriteString("\n" + strings.TrimSpace(s.Summary) + "\n")
	}
	if s.Content != "" {
		b.WriteString("\n" + strings.TrimSpace(s.Content) + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

// parseSessions extracts session blocks from journal file content.
// Lines before the first header are ignored, as is anything a block
// does not recognize. A date that fails to parse is left zero rather
// than discarding the session.
func parseSessions(content string) []Session {
	var sessions []Session
	var cur *Session
	var body []string
	bodyStarted := false

	flush := func() {
		if cur == nil {
			return
		}
		paragraphs := splitParagraphs(body)
		if len(paragraphs) > 0 {
			cur.Summary = paragraphs[0]
		}
		if len(paragraphs) > 1 {
			cur.Content = strings.Join(paragraphs[1:], "\n\n")
		}
		sessions = append(sessions, *cur)
		cur = nil
		body = nil
		bodyStarted = false
	}

	for _, line := range strings.Split(content, "\n") {
		if m := sessionHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			number, _ := strconv.Atoi(m[1])
			cur = &Session{Number: number, Title: m[2]}
			continue
		}
		if cur == nil {
			continue
		}
		if !bodyStarted && strings.HasPrefix(line, dateLinePrefix) {
			value := strings.TrimSpace(strings.TrimPrefix(line, dateLinePrefix))
			if ts, err := time.Parse(dateLayout, value); err == nil {
				cur.Date = ts
			}
			continue
		}
		if !bodyStarted && strings.HasPrefix(line, commitLinePrefix) {
			cur.Commit = strings.TrimSpace(strings.TrimPrefix(line, commitLinePrefix))
			continue
		}
		if strings.TrimSpace(line) != "" {
			bodyStarted = true
		}
		body = append(body, line)
	}
	flush()
	return sessions
}

// splitParagraphs groups non-blank lines into blank-line-delimited
// paragraphs.
func splitParagraphs(lines []string) []string {
	var paragraphs []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			paragraphs = append(paragraphs, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return paragraphs
}
