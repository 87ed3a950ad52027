package analyzer

import (
	"errors"
)

// Kind classifies a failure so each surface can pick a status or colour.
type Kind string

const (
	KindInput      Kind = "input"
	KindNoReport   Kind = "no_report"
	KindExtraction Kind = "extraction"
	KindLLM        Kind = "llm"
	KindStore      Kind = "store"
)

const (
	OpUpload    = "upload"
	OpSummarize = "summarize"
	OpAsk       = "ask"
	OpRecommend = "recommend"
)

var (
	ErrEmptyUpload   = errors.New("Please upload a PDF file.")
	ErrEmptyQuestion = errors.New("Please enter a question to get an answer.")
	ErrNoReport      = errors.New("Please upload a soil report first.")
)

// Error is returned by every Service operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindExtraction:
		return "Error extracting text from PDF: " + e.cause()
	case KindLLM:
		switch e.Op {
		case OpSummarize:
			return "Error summarizing soil report: " + e.cause()
		case OpAsk:
			return "Error answering query: " + e.cause()
		case OpRecommend:
			return "Error generating recommendations: " + e.cause()
		}
		return "Error calling language model: " + e.cause()
	case KindStore:
		return "Error accessing session: " + e.cause()
	}
	return e.cause()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) cause() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// KindOf reports the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
