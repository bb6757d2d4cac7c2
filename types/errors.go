package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidFormat      = errors.New("invalid PDF file")
	ErrUnreadableDocument = errors.New("cannot read this PDF with available parsers")
	ErrIndexNotReady      = errors.New("index is not ready")
	ErrNoModelAvailable   = errors.New("no generative model available")
	ErrPersistence        = errors.New("index could not be persisted")

	// ErrNoText marks an extraction that parsed the file but found no text
	// layer, which is what scanned catalogs look like.
	ErrNoText = errors.New("no extractable text")

	// ErrBackendUnavailable marks a backend that could not run at all, such
	// as an external tool missing from PATH.
	ErrBackendUnavailable = errors.New("extraction backend unavailable")
)

const NoRelevantMessage = "Sorry, there is no relevant information in the database for your question. " +
	"Make sure a PDF has been uploaded and contains the information you are looking for."

type ExtractAttempt struct {
	Backend string
	Err     error
}

type UnreadableError struct {
	Attempts []ExtractAttempt
}

func (e *UnreadableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnreadableDocument, strings.Join(e.Details(), " | "))
}

func (e *UnreadableError) Unwrap() error {
	return ErrUnreadableDocument
}

func (e *UnreadableError) Details() []string {
	out := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		out = append(out, fmt.Sprintf("%s: %v", a.Backend, a.Err))
	}
	return out
}

// ImageOnly reports whether every backend that ran parsed the file but found
// no text. Unavailable backends are not counted.
func (e *UnreadableError) ImageOnly() bool {
	ran := 0
	for _, a := range e.Attempts {
		if errors.Is(a.Err, ErrBackendUnavailable) {
			continue
		}
		if !errors.Is(a.Err, ErrNoText) {
			return false
		}
		ran++
	}
	return ran > 0
}

type ProblemKind string

const (
	KindInvalidFormat      ProblemKind = "invalid_format"
	KindUnreadableDocument ProblemKind = "unreadable_document"
	KindIndexNotReady      ProblemKind = "index_not_ready"
	KindNoModelAvailable   ProblemKind = "no_model_available"
	KindPersistence        ProblemKind = "persistence_failure"
	KindInternal           ProblemKind = "internal"
)

// Problem is the user-visible rendering of an error. The HTTP API and the
// interactive UI both go through Describe so they show the same text.
type Problem struct {
	Kind    ProblemKind `json:"kind"`
	Message string      `json:"error"`
	Details []string    `json:"details,omitempty"`
}

func Describe(err error) Problem {
	var unreadable *UnreadableError
	switch {
	case errors.Is(err, ErrInvalidFormat):
		return Problem{
			Kind:    KindInvalidFormat,
			Message: "The uploaded file is not a valid PDF. Please upload it again.",
			Details: []string{err.Error()},
		}
	case errors.As(err, &unreadable):
		msg := "Cannot read this PDF with the available parsers. Make sure the file is not encrypted or scan-only."
		if unreadable.ImageOnly() {
			msg = "This PDF has no text layer (it looks like a scanned image). Run OCR on it first and upload it again."
		}
		return Problem{Kind: KindUnreadableDocument, Message: msg, Details: unreadable.Details()}
	case errors.Is(err, ErrUnreadableDocument):
		return Problem{
			Kind:    KindUnreadableDocument,
			Message: "Cannot read this PDF with the available parsers. Make sure the file is not encrypted or scan-only.",
		}
	case errors.Is(err, ErrIndexNotReady):
		return Problem{
			Kind:    KindIndexNotReady,
			Message: "The database does not exist yet. Upload a PDF through the admin mode first.",
		}
	case errors.Is(err, ErrNoModelAvailable):
		return Problem{
			Kind:    KindNoModelAvailable,
			Message: "No Gemini 2.x model is available for this API key.",
			Details: []string{err.Error()},
		}
	case errors.Is(err, ErrPersistence):
		return Problem{
			Kind:    KindPersistence,
			Message: "The document was processed but the index could not be saved. Nothing from this upload is searchable.",
			Details: []string{err.Error()},
		}
	default:
		return Problem{Kind: KindInternal, Message: err.Error()}
	}
}
