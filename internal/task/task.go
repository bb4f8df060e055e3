// Package task runs one blocking unit of work off the polling goroutine and
// hands its result back through a one-shot slot.
//
// There is no cancellation: a caller that no longer wants the result simply
// drops the *Task. The worker still runs to completion and its result is
// discarded with the buffered channel.
package task

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/sjawhar/dictaite/internal/apperr"
)

// ErrDisconnected is delivered when the worker died without producing a result.
var ErrDisconnected = apperr.Messagef("Background task channel disconnected")

type Result[T any] struct {
	Value T
	Err   error
}

type Task[T any] struct {
	ch    chan Result[T]
	spent bool
}

// Spawn starts work on a new goroutine immediately.
func Spawn[T any](work func() (T, error)) *Task[T] {
	ch := make(chan Result[T], 1)
	go run(ch, work)
	return &Task[T]{ch: ch}
}

func run[T any](ch chan<- Result[T], work func() (T, error)) {
	defer close(ch)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task: worker panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	value, err := work()
	ch <- Result[T]{Value: value, Err: err}
}

// TryTake never blocks. It reports false while the worker is still running and
// forever after the result has been taken once.
func (t *Task[T]) TryTake() (Result[T], bool) {
	if t == nil || t.spent {
		return Result[T]{}, false
	}

	select {
	case res, ok := <-t.ch:
		t.spent = true
		if !ok {
			return Result[T]{Err: ErrDisconnected}, true
		}
		return res, true
	default:
		return Result[T]{}, false
	}
}

// Spent reports whether the result has already been delivered.
func (t *Task[T]) Spent() bool {
	return t == nil || t.spent
}
