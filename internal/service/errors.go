package service

import "fmt"

// Kind classifies service failures so callers can map them to transport
// codes without string matching.
type Kind string

const (
	KindInvalidInput    Kind = "invalid_input"
	KindParseUnresolved Kind = "parse_unresolved"
	KindStoreUnavail    Kind = "store_unavailable"
	KindLLMUnavail      Kind = "llm_unavailable"
	KindEmbedUnavail    Kind = "embedding_unavailable"
	KindTimeout         Kind = "timeout"
	KindInternal        Kind = "internal"
)

// Error is the service error type.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a service error.
func E(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from an error, defaulting to internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if se, ok := err.(*Error); ok {
		return se.Kind
	}
	return KindInternal
}
