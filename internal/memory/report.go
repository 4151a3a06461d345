package memory

import (
	"bufio"
	"strings"
)

const FullReportTitle = "Full Report"

type Section struct {
	Title string
	Body  string
}

// Sections splits a markdown report on level-two headings, keeping their
// order. Deeper headings inside a section are demoted one level so they
// render beneath it. A report without "## " headings is one section.
func Sections(report string) []Section {
	var (
		out     []Section
		current *Section
		body    strings.Builder
	)
	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(body.String())
			out = append(out, *current)
		}
		body.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(report))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "## ") {
			flush()
			current = &Section{Title: strings.TrimSpace(strings.TrimPrefix(line, "## "))}
			continue
		}
		if current == nil {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "###") {
			line = strings.Replace(line, "###", "####", 1)
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	if len(out) == 0 {
		return []Section{{Title: FullReportTitle, Body: strings.TrimSpace(report)}}
	}
	return out
}
