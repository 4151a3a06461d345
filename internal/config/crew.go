package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeanpaul/secexpert/internal/apperr"
)

//go:embed crew.yaml
var defaultCrewYAML []byte

const (
	TaskInterview = "interview_task"
	TaskAnalysis  = "analysis_task"
)

// AgentDef describes one member of the crew.
type AgentDef struct {
	Role      string `yaml:"role"`
	Goal      string `yaml:"goal"`
	Backstory string `yaml:"backstory"`
}

// TaskDef is a prompt template bound to an agent. Templates may use the
// {tech_stack_description}, {conversation_history} and {user_response}
// placeholders.
type TaskDef struct {
	Agent          string `yaml:"agent"`
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
}

type Crew struct {
	Agents map[string]AgentDef `yaml:"agents"`
	Tasks  map[string]TaskDef  `yaml:"tasks"`
}

// DefaultCrew returns the built-in interviewer/analyst crew.
func DefaultCrew() *Crew {
	var c Crew
	if err := yaml.Unmarshal(defaultCrewYAML, &c); err != nil {
		panic(fmt.Sprintf("config: embedded crew.yaml is invalid: %v", err))
	}
	return &c
}

// LoadCrew reads a crew file and overlays it on the built-in crew. An empty
// path returns the defaults.
func LoadCrew(path string) (*Crew, error) {
	crew := DefaultCrew()
	if path == "" {
		return crew, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Configuration("read crew file", err)
	}

	var override Crew
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, apperr.Configuration("parse crew file", fmt.Errorf("%s: %w", path, err))
	}
	for name, a := range override.Agents {
		crew.Agents[name] = a
	}
	for name, t := range override.Tasks {
		crew.Tasks[name] = t
	}

	if err := crew.Validate(); err != nil {
		return nil, err
	}
	return crew, nil
}

func (c *Crew) Validate() error {
	for _, name := range []string{TaskInterview, TaskAnalysis} {
		t, ok := c.Tasks[name]
		if !ok {
			return apperr.Configuration("validate crew", fmt.Errorf("task %q is missing", name))
		}
		if strings.TrimSpace(t.Description) == "" {
			return apperr.Configuration("validate crew", fmt.Errorf("task %q has no description", name))
		}
		if _, ok := c.Agents[t.Agent]; !ok {
			return apperr.Configuration("validate crew", fmt.Errorf("task %q references unknown agent %q", name, t.Agent))
		}
	}
	return nil
}

// Render fills the task's placeholders.
func (t TaskDef) Render(techStack, history, userResponse string) string {
	r := strings.NewReplacer(
		"{tech_stack_description}", techStack,
		"{conversation_history}", history,
		"{user_response}", userResponse,
	)
	return r.Replace(t.Description)
}

// SystemPrompt builds the system message for an agent and the output it owes.
func (a AgentDef) SystemPrompt(expectedOutput string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the %s.\n", strings.TrimSpace(a.Role))
	if g := strings.TrimSpace(a.Goal); g != "" {
		fmt.Fprintf(&sb, "Goal: %s\n", g)
	}
	if b := strings.TrimSpace(a.Backstory); b != "" {
		fmt.Fprintf(&sb, "Background: %s\n", b)
	}
	if e := strings.TrimSpace(expectedOutput); e != "" {
		fmt.Fprintf(&sb, "\nExpected output:\n%s\n", e)
	}
	return sb.String()
}
