package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanpaul/secexpert/internal/apperr"
)

func TestDefaultCrewIsValid(t *testing.T) {
	c := DefaultCrew()
	require.NoError(t, c.Validate())
	assert.Equal(t, "interviewer", c.Tasks[TaskInterview].Agent)
	assert.Equal(t, "analyst", c.Tasks[TaskAnalysis].Agent)
}

func TestRenderPlaceholders(t *testing.T) {
	task := TaskDef{Description: "stack={tech_stack_description} hist={conversation_history} ans={user_response}"}
	out := task.Render("React", "Q1", "yes")
	assert.Equal(t, "stack=React hist=Q1 ans=yes", out)
}

func TestLoadCrewOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crew.yaml")
	data := `agents:
  analyst:
    role: Red Team Lead
tasks:
  analysis_task:
    agent: analyst
    description: "Attack {tech_stack_description}"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := LoadCrew(path)
	require.NoError(t, err)
	assert.Equal(t, "Red Team Lead", c.Agents["analyst"].Role)
	assert.Equal(t, "Attack Go", c.Tasks[TaskAnalysis].Render("Go", "", ""))
	assert.NotEmpty(t, c.Tasks[TaskInterview].Description)
}

func TestLoadCrewUnknownAgent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crew.yaml")
	data := `tasks:
  interview_task:
    agent: ghost
    description: hi
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadCrew(path)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestSystemPrompt(t *testing.T) {
	a := AgentDef{Role: "Security Analyst", Goal: "find bugs"}
	p := a.SystemPrompt("a list")
	assert.Contains(t, p, "You are the Security Analyst.")
	assert.Contains(t, p, "Goal: find bugs")
	assert.Contains(t, p, "Expected output:\na list")
	assert.NotContains(t, p, "Background:")
}
