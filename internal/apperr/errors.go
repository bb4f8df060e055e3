// Package apperr defines the failure taxonomy shared by the capture, playback,
// synthesis and network layers. Every failure that reaches the controller is an
// *Error so it can be rendered as status text without losing its kind.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindMessage Kind = iota
	KindAudio
	KindNetwork
	KindTranscription
	KindTranslation
	KindSynthesis
	KindMissingAPIKey
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindNetwork:
		return "network"
	case KindTranscription:
		return "transcription"
	case KindTranslation:
		return "translation"
	case KindSynthesis:
		return "synthesis"
	case KindMissingAPIKey:
		return "missing_api_key"
	default:
		return "message"
	}
}

// ErrMissingAPIKey is returned when a network collaborator is built without credentials.
var ErrMissingAPIKey = &Error{Kind: KindMissingAPIKey, Msg: "OpenAI API key is not configured"}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	switch e.Kind {
	case KindAudio:
		return "Audio error: " + msg
	case KindNetwork:
		return "HTTP request failed: " + msg
	case KindTranscription:
		return "Transcription error: " + msg
	case KindTranslation:
		return "Translation error: " + msg
	case KindSynthesis:
		return "Text-to-speech error: " + msg
	default:
		return msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so errors.Is(err, apperr.ErrMissingAPIKey) works for any
// missing-key failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Audiof(format string, args ...any) *Error { return newf(KindAudio, format, args...) }

func Transcriptionf(format string, args ...any) *Error {
	return newf(KindTranscription, format, args...)
}

func Translationf(format string, args ...any) *Error {
	return newf(KindTranslation, format, args...)
}

func Synthesisf(format string, args ...any) *Error { return newf(KindSynthesis, format, args...) }

func Messagef(format string, args ...any) *Error { return newf(KindMessage, format, args...) }

// Wrap attaches a kind to an underlying error. A nil err yields nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	if msg == "" {
		return &Error{Kind: kind, Err: err}
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf("%s: %v", msg, err), Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, or KindMessage.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindMessage
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
