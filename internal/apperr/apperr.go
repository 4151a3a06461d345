// Package apperr defines the error taxonomy shared by the analysis core.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindConfiguration means a required setting or credential is missing.
	// It is fatal and raised before any work begins.
	KindConfiguration Kind = iota + 1
	// KindStorage covers I/O failures reading or writing the record store.
	KindStorage
	// KindAgentPipeline means the LLM pipeline failed or returned nothing usable.
	KindAgentPipeline
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindStorage:
		return "storage error"
	case KindAgentPipeline:
		return "agent pipeline error"
	}
	return "error"
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Configuration(op string, err error) *Error { return New(KindConfiguration, op, err) }

func Storage(op string, err error) *Error { return New(KindStorage, op, err) }

func AgentPipeline(op string, err error) *Error { return New(KindAgentPipeline, op, err) }

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
