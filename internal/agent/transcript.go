package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	SpeakerInterviewer = "Interviewer"
	SpeakerUser        = "User"
)

type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Transcript accumulates interview turns and renders them as the
// conversation history handed to the crew. Once the rendered text passes
// maxChars, older turns collapse into a one-line-per-turn summary.
type Transcript struct {
	Turns    []Turn `json:"turns"`
	maxChars int
}

func NewTranscript() *Transcript {
	return &Transcript{maxChars: 24000}
}

func (t *Transcript) SetMaxChars(n int) {
	if n > 0 {
		t.maxChars = n
	}
}

func (t *Transcript) AddQuestion(text string) { t.add(SpeakerInterviewer, text) }

func (t *Transcript) AddAnswer(text string) { t.add(SpeakerUser, text) }

func (t *Transcript) add(speaker, text string) {
	t.Turns = append(t.Turns, Turn{Speaker: speaker, Text: strings.TrimSpace(text)})
}

func (t *Transcript) Len() int { return len(t.Turns) }

// LastQuestion returns the most recent interviewer turn.
func (t *Transcript) LastQuestion() string {
	for i := len(t.Turns) - 1; i >= 0; i-- {
		if t.Turns[i].Speaker == SpeakerInterviewer {
			return t.Turns[i].Text
		}
	}
	return ""
}

// String renders the transcript, compacted to fit maxChars where possible.
func (t *Transcript) String() string {
	full := render(t.Turns)
	if t.maxChars <= 0 || len(full) <= t.maxChars || len(t.Turns) <= 6 {
		return full
	}

	// keep the last 6 turns verbatim, summarize the rest
	cutoff := len(t.Turns) - 6
	var sb strings.Builder
	sb.WriteString("[Earlier interview summary]\n")
	for _, turn := range t.Turns[:cutoff] {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Speaker, truncateText(turn.Text, 100))
	}
	sb.WriteString("\n")
	sb.WriteString(render(t.Turns[cutoff:]))
	return sb.String()
}

func render(turns []Turn) string {
	var sb strings.Builder
	for i, turn := range turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s: %s", turn.Speaker, turn.Text)
	}
	return sb.String()
}

// Save persists the transcript as JSON.
func (t *Transcript) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func LoadTranscript(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t := NewTranscript()
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	return t, nil
}

func truncateText(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
