package memory

import (
	"bufio"
	"regexp"
	"strings"
)

// ParsedAnalysis is what the recorder extracts from free-form analysis text.
type ParsedAnalysis struct {
	Risks           []string
	Recommendations []string
}

type section int

const (
	sectionNone section = iota
	sectionRisks
	sectionRecommendations
)

var numberedLine = regexp.MustCompile(`^\d+[.)]\s+(.+)$`)

var (
	riskMarkers           = []string{"risk", "vulnerabilit", "threat"}
	recommendationMarkers = []string{"recommendation", "mitigation", "remediation"}
)

// ParseAnalysis classifies numbered list items under risk and recommendation
// headings. It is line-oriented and best effort: headings may vary in
// wording, items must be numbered, and lines outside a recognised section
// are dropped.
func ParseAnalysis(text string) ParsedAnalysis {
	var out ParsedAnalysis
	current := sectionNone

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if m := numberedLine.FindStringSubmatch(line); m != nil {
			item := cleanItem(m[1])
			if item == "" {
				continue
			}
			switch current {
			case sectionRisks:
				out.Risks = append(out.Risks, item)
			case sectionRecommendations:
				out.Recommendations = append(out.Recommendations, item)
			}
			continue
		}

		if heading, ok := headingText(line); ok {
			current = classifyHeading(heading)
		}
	}
	return out
}

// headingText recognises markdown headings, whole-line bold text and short
// label lines ending in a colon.
func headingText(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "#"):
		return strings.TrimSpace(strings.TrimLeft(line, "#")), true
	case strings.HasPrefix(line, "**") && strings.HasSuffix(strings.TrimSuffix(line, ":"), "**") && len(line) > 4:
		return strings.Trim(line, "*: "), true
	case strings.HasSuffix(line, ":") && !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*"):
		return strings.TrimSuffix(line, ":"), true
	}
	return "", false
}

// classifyHeading picks the section whose marker appears first, so
// "Recommendations to reduce risk" is a recommendations heading.
func classifyHeading(heading string) section {
	h := strings.ToLower(heading)
	risk := firstIndex(h, riskMarkers)
	rec := firstIndex(h, recommendationMarkers)
	switch {
	case risk < 0 && rec < 0:
		return sectionNone
	case rec < 0 || (risk >= 0 && risk < rec):
		return sectionRisks
	}
	return sectionRecommendations
}

func firstIndex(s string, markers []string) int {
	best := -1
	for _, m := range markers {
		if i := strings.Index(s, m); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

func cleanItem(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}

// SplitRisk splits "Type: description" at the first colon.
func SplitRisk(risk string) (vulnerabilityType, description string, ok bool) {
	before, after, found := strings.Cut(risk, ":")
	if !found {
		return "", "", false
	}
	return strings.TrimSpace(before), strings.TrimSpace(after), true
}
