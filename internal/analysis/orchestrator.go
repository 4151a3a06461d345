// Package analysis is the entry point for interviews and analyses. It
// composes retrieved context, runs the agent pipeline and records results.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeanpaul/secexpert/internal/agent"
	"github.com/jeanpaul/secexpert/internal/apperr"
	"github.com/jeanpaul/secexpert/internal/logger"
	"github.com/jeanpaul/secexpert/internal/observability"
	"github.com/jeanpaul/secexpert/internal/store"
)

const recordTimeout = 30 * time.Second

type Composer interface {
	Compose(ctx context.Context, text, sessionID string) (string, bool)
}

type Recorder interface {
	RecordResult(ctx context.Context, text, sessionID, analysis string) error
	RecordInterviewedResult(ctx context.Context, text, sessionID, analysis, transcript string) error
}

type HistoryReader interface {
	ListSessionHistory(ctx context.Context, sessionID string, limit int) ([]store.Conversation, error)
}

type Options struct {
	// Timeout bounds one pipeline run. Zero means five minutes.
	Timeout      time.Duration
	HistoryLimit int
	Logger       *logger.Logger
	Tracer       trace.Tracer
}

type Orchestrator struct {
	pipeline     agent.Pipeline
	composer     Composer
	recorder     Recorder
	history      HistoryReader
	timeout      time.Duration
	historyLimit int
	log          *logger.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

func New(p agent.Pipeline, c Composer, r Recorder, h HistoryReader, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.Tracer("secexpert/analysis")
	}
	return &Orchestrator{
		pipeline:     p,
		composer:     c,
		recorder:     r,
		history:      h,
		timeout:      opts.Timeout,
		historyLimit: opts.HistoryLimit,
		log:          opts.Logger.With("component", "analysis"),
		tracer:       opts.Tracer,
		now:          time.Now,
	}
}

// RunAnalysis enriches techStack with retrieved context, runs the analysis
// and records it. Failures come back as an error Result and leave the store
// untouched.
func (o *Orchestrator) RunAnalysis(ctx context.Context, techStack, sessionID string) Result {
	return o.analyze(ctx, techStack, sessionID, "")
}

// RunInterviewedAnalysis is RunAnalysis with an interview transcript that is
// passed to the analyst and stored with the conversation.
func (o *Orchestrator) RunInterviewedAnalysis(ctx context.Context, techStack, sessionID, history string) Result {
	return o.analyze(ctx, techStack, sessionID, history)
}

func (o *Orchestrator) analyze(ctx context.Context, techStack, sessionID, history string) Result {
	ctx, span := o.tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Bool("interviewed", history != ""),
	))
	defer span.End()

	res := Result{Type: TypeFinalAnalysis, TechStack: techStack, SessionID: sessionID}
	if strings.TrimSpace(techStack) == "" {
		return o.fail(span, res, agent.ActionPerformAnalysis, errors.New("tech stack description is empty"))
	}

	enriched, used := o.compose(ctx, techStack, sessionID)
	span.SetAttributes(attribute.Bool("context.used", used))

	text, err := o.invoke(ctx, agent.Input{
		TechStackDescription: enriched,
		ConversationHistory:  history,
		Action:               agent.ActionPerformAnalysis,
	})
	if err != nil {
		return o.fail(span, res, agent.ActionPerformAnalysis, err)
	}

	// the caller's deadline covers the pipeline, not the write-back
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := o.record(recCtx, techStack, sessionID, text, history); err != nil {
		o.log.Error("recording analysis failed", "session_id", sessionID, "error", err)
		span.AddEvent("record failed", trace.WithAttributes(attribute.String("error", err.Error())))
	}

	res.Status = StatusSuccess
	res.Analysis = text
	res.ContextUsed = used
	res.Timestamp = timestamp(o.now())
	span.SetStatus(codes.Ok, "")
	o.log.Info("analysis completed", "session_id", sessionID, "context_used", used, "chars", len(text))
	return res
}

// StartInterview asks the first round of clarifying questions.
func (o *Orchestrator) StartInterview(ctx context.Context, techStack string) Result {
	ctx, span := o.tracer.Start(ctx, "interview.start")
	defer span.End()

	res := Result{Type: TypeInterviewQuestion, TechStack: techStack}
	if strings.TrimSpace(techStack) == "" {
		return o.fail(span, res, agent.ActionStartInterview, errors.New("tech stack description is empty"))
	}
	text, err := o.invoke(ctx, agent.Input{TechStackDescription: techStack, Action: agent.ActionStartInterview})
	if err != nil {
		return o.fail(span, res, agent.ActionStartInterview, err)
	}
	return o.interviewOK(span, res, text)
}

// ContinueInterview asks follow-up questions given the transcript so far and
// the user's latest answer.
func (o *Orchestrator) ContinueInterview(ctx context.Context, history, userResponse string) Result {
	ctx, span := o.tracer.Start(ctx, "interview.continue")
	defer span.End()

	res := Result{Type: TypeInterviewQuestion}
	text, err := o.invoke(ctx, agent.Input{
		ConversationHistory: history,
		UserResponse:        userResponse,
		Action:              agent.ActionContinueInterview,
	})
	if err != nil {
		return o.fail(span, res, agent.ActionContinueInterview, err)
	}
	return o.interviewOK(span, res, text)
}

func (o *Orchestrator) interviewOK(span trace.Span, res Result, text string) Result {
	res.Status = StatusSuccess
	res.Message = text
	res.Timestamp = timestamp(o.now())
	span.SetStatus(codes.Ok, "")
	return res
}

// History lists a session's past analyses.
func (o *Orchestrator) History(ctx context.Context, sessionID string, limit int) HistoryResult {
	if limit <= 0 {
		limit = o.historyLimit
	}
	res := HistoryResult{SessionID: sessionID, Timestamp: timestamp(o.now())}
	rows, err := o.history.ListSessionHistory(ctx, sessionID, limit)
	if err != nil {
		o.log.Error("history lookup failed", "session_id", sessionID, "error", err)
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}
	res.Status = StatusSuccess
	res.History = rows
	if res.History == nil {
		res.History = []store.Conversation{}
	}
	return res
}

// compose falls back to the plain description if retrieval panics.
func (o *Orchestrator) compose(ctx context.Context, techStack, sessionID string) (enriched string, used bool) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("context composition panicked", "session_id", sessionID, "panic", r)
			enriched, used = techStack, false
		}
	}()
	return o.composer.Compose(ctx, techStack, sessionID)
}

func (o *Orchestrator) record(ctx context.Context, techStack, sessionID, text, history string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recorder panic: %v", r)
		}
	}()
	if history != "" {
		return o.recorder.RecordInterviewedResult(ctx, techStack, sessionID, text, history)
	}
	return o.recorder.RecordResult(ctx, techStack, sessionID, text)
}

// invoke runs the pipeline on its own goroutine so a timeout or cancellation
// returns promptly. A late result is dropped.
func (o *Orchestrator) invoke(ctx context.Context, in agent.Input) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: apperr.AgentPipeline(in.Action.String(), fmt.Errorf("panic: %v", r))}
			}
		}()
		text, err := o.pipeline.Run(ctx, in)
		done <- outcome{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && strings.TrimSpace(res.text) == "" {
			return "", apperr.AgentPipeline(in.Action.String(), errors.New("pipeline returned no text"))
		}
		return res.text, res.err
	case <-ctx.Done():
		return "", apperr.AgentPipeline(in.Action.String(), fmt.Errorf("pipeline did not finish: %w", ctx.Err()))
	}
}

func (o *Orchestrator) fail(span trace.Span, res Result, action agent.Action, err error) Result {
	res.Status = StatusError
	res.Error = err.Error()
	res.Timestamp = timestamp(o.now())

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.log.Error("request failed",
		"action", action,
		"session_id", res.SessionID,
		"tech_stack", res.TechStack,
		"error", err,
	)
	return res
}
