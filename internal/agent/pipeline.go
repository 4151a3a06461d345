// Package agent runs the interviewer/analyst crew against an LLM provider.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeanpaul/secexpert/internal/apperr"
	"github.com/jeanpaul/secexpert/internal/config"
	"github.com/jeanpaul/secexpert/internal/logger"
	"github.com/jeanpaul/secexpert/internal/provider"
)

// Input is everything one pipeline run needs. The action is explicit so a
// Pipeline holds no per-request state.
type Input struct {
	TechStackDescription string
	ConversationHistory  string
	UserResponse         string
	Action               Action
}

// validate checks the fields the action needs. A follow-up interview turn
// may omit the stack because it is already in the history.
func (in Input) validate() error {
	if in.Action == ActionContinueInterview {
		if strings.TrimSpace(in.UserResponse) == "" && strings.TrimSpace(in.ConversationHistory) == "" {
			return errors.New("user response and conversation history are both empty")
		}
		return nil
	}
	if strings.TrimSpace(in.TechStackDescription) == "" {
		return errors.New("tech stack description is empty")
	}
	return nil
}

// Pipeline turns an input into LLM text.
type Pipeline interface {
	Run(ctx context.Context, in Input) (string, error)
}

// Crew is the Pipeline backed by a provider and the crew definitions.
type Crew struct {
	prov provider.Provider
	crew *config.Crew
	opts provider.Options
	log  *logger.Logger
}

var _ Pipeline = (*Crew)(nil)

func NewCrew(prov provider.Provider, crew *config.Crew, opts provider.Options, log *logger.Logger) *Crew {
	if crew == nil {
		crew = config.DefaultCrew()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Crew{prov: prov, crew: crew, opts: opts, log: log.With("component", "crew")}
}

func (c *Crew) Run(ctx context.Context, in Input) (string, error) {
	if !in.Action.Valid() {
		return "", apperr.AgentPipeline("run", fmt.Errorf("unknown action %q", in.Action))
	}
	if err := in.validate(); err != nil {
		return "", apperr.AgentPipeline(in.Action.String(), err)
	}

	msgs, err := c.Messages(in)
	if err != nil {
		return "", apperr.AgentPipeline(in.Action.String(), err)
	}

	runID := uuid.NewString()
	start := time.Now()
	c.log.Debug("pipeline run started", "run_id", runID, "action", in.Action, "provider", c.prov.Name())

	out, err := provider.Collect(ctx, c.prov, msgs, c.opts)
	if err != nil {
		c.log.Debug("pipeline run failed", "run_id", runID, "error", err)
		return "", apperr.AgentPipeline(in.Action.String(), err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", apperr.AgentPipeline(in.Action.String(), errors.New("model returned no text"))
	}

	c.log.Debug("pipeline run finished", "run_id", runID, "duration", time.Since(start), "chars", len(out))
	return out, nil
}

// Messages renders the system and user messages for an input.
func (c *Crew) Messages(in Input) ([]provider.Message, error) {
	taskName := config.TaskInterview
	if in.Action == ActionPerformAnalysis {
		taskName = config.TaskAnalysis
	}
	task, ok := c.crew.Tasks[taskName]
	if !ok {
		return nil, fmt.Errorf("task %q is not defined", taskName)
	}
	agentDef, ok := c.crew.Agents[task.Agent]
	if !ok {
		return nil, fmt.Errorf("agent %q is not defined", task.Agent)
	}

	stack := in.TechStackDescription
	if strings.TrimSpace(stack) == "" {
		stack = "(described in the conversation history)"
	}
	history := in.ConversationHistory
	if strings.TrimSpace(history) == "" {
		history = "(none yet)"
	}
	response := in.UserResponse
	if strings.TrimSpace(response) == "" {
		response = "(none yet)"
	}

	return []provider.Message{
		{Role: provider.RoleSystem, Content: agentDef.SystemPrompt(task.ExpectedOutput)},
		{Role: provider.RoleUser, Content: task.Render(stack, history, response)},
	}, nil
}
