package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/MimeLyc/video-note/pkg/log"
)

type ErrorType int

const (
	NotFound ErrorType = iota
	UnsupportedModel
	ModelLoadFailure
	TranscriptionFailure
	FormatFailure
	Validation
	Config
	NoteFailure
	Unknown
)

type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func New(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func Newf(errorType ErrorType, format string, args ...any) *Error {
	return New(errorType, fmt.Sprintf(format, args...))
}

func Wrap(err error, errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   err,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case NotFound:
		return "NotFound"
	case UnsupportedModel:
		return "UnsupportedModel"
	case ModelLoadFailure:
		return "ModelLoadFailure"
	case TranscriptionFailure:
		return "TranscriptionFailure"
	case FormatFailure:
		return "FormatFailure"
	case Validation:
		return "Validation"
	case Config:
		return "Config"
	case NoteFailure:
		return "NoteFailure"
	default:
		return "Unknown"
	}
}

// Is reports whether any error in err's chain is an *Error of the given type.
func Is(err error, errorType ErrorType) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// TypeOf returns the type of the outermost *Error in err's chain, or Unknown.
func TypeOf(err error) ErrorType {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return Unknown
}

// Message returns the human-readable message without type or cause decoration.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func HTTPStatus(errorType ErrorType) int {
	switch errorType {
	case NotFound:
		return http.StatusNotFound
	case UnsupportedModel, FormatFailure, Validation:
		return http.StatusBadRequest
	case NoteFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type Handler interface {
	Handle(err error) bool
	Advice(err *Error) string
}

type DefaultHandler struct{}

func NewDefaultHandler() Handler {
	return &DefaultHandler{}
}

// Handle logs err with advice and reports whether it was a typed error.
func (h *DefaultHandler) Handle(err error) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		log.Error("Unknown error: %v", err)
		return false
	}

	log.Error("Error detail: %v | advice: %s", err, h.Advice(appErr))
	return true
}

func (h *DefaultHandler) Advice(err *Error) string {
	switch err.Type {
	case NotFound:
		return "Check that the file or identifier exists; uploads may have been swept after their max age"
	case UnsupportedModel:
		return "Pick one of the models listed by the models command or GET /api/models"
	case ModelLoadFailure:
		return "Check disk space, network access to the model hub, and that the speech backend is installed"
	case TranscriptionFailure:
		return "The decoder failed mid-run; retry, optionally with a different model"
	case FormatFailure:
		return "Use one of the supported subtitle formats: vtt or srt"
	case Validation:
		return "Check the request parameters"
	case Config:
		return "Check environment variables and the config file"
	case NoteFailure:
		return "Check the note provider API key, endpoint, and model name"
	default:
		return "Review the error detail and related configuration"
	}
}
