package task

import (
	"errors"
	"testing"
	"time"

	"github.com/sjawhar/dictaite/internal/apperr"
)

func waitFor[T any](t *testing.T, tk *Task[T]) Result[T] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if res, ok := tk.TryTake(); ok {
			return res
		}
		select {
		case <-deadline:
			t.Fatal("task did not resolve in time")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestTryTakePendingThenValue(t *testing.T) {
	release := make(chan struct{})
	tk := Spawn(func() (string, error) {
		<-release
		return "transcript", nil
	})

	if _, ok := tk.TryTake(); ok {
		t.Fatal("expected pending immediately after Spawn")
	}

	close(release)
	res := waitFor(t, tk)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != "transcript" {
		t.Fatalf("expected transcript, got %q", res.Value)
	}
}

func TestTryTakeDeliversWorkerError(t *testing.T) {
	want := apperr.Transcriptionf("upstream rejected audio")
	tk := Spawn(func() (int, error) { return 0, want })

	res := waitFor(t, tk)
	if !errors.Is(res.Err, want) {
		t.Fatalf("expected worker error, got %v", res.Err)
	}
}

func TestTryTakeIsSpentAfterFirstResult(t *testing.T) {
	tk := Spawn(func() (int, error) { return 7, nil })
	_ = waitFor(t, tk)

	for range 3 {
		if _, ok := tk.TryTake(); ok {
			t.Fatal("expected spent task to stay pending")
		}
	}
	if !tk.Spent() {
		t.Fatal("expected Spent() after result taken")
	}
}

func TestPanickingWorkerYieldsDisconnection(t *testing.T) {
	tk := Spawn(func() (string, error) {
		panic("worker crashed")
	})

	res := waitFor(t, tk)
	if !errors.Is(res.Err, ErrDisconnected) {
		t.Fatalf("expected disconnection failure, got %v", res.Err)
	}
	if apperr.KindOf(res.Err) != apperr.KindMessage {
		t.Fatalf("expected message kind, got %v", apperr.KindOf(res.Err))
	}
}

func TestNilTaskIsPending(t *testing.T) {
	var tk *Task[int]
	if _, ok := tk.TryTake(); ok {
		t.Fatal("expected nil task to report pending")
	}
}
