package common

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 4, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls should be 3, not %d", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.New("down")
	})
	if err == nil || err.Error() != "down" {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls should be 3, not %d", calls)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, 5, time.Second, func() error {
		calls++
		return errors.New("down")
	})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls should be 1, not %d", calls)
	}
}

func TestIsStoreWrapped(t *testing.T) {
	err := NewStoreErr("CandidateVotes", KeyNotFound, "votes_0000000001")
	if !IsStore(err, KeyNotFound) {
		t.Fatal("expected KeyNotFound")
	}
	if IsStore(err, Closed) {
		t.Fatal("did not expect Closed")
	}
	if !IsStore(pkgerrors.Wrap(err, "loading votes"), KeyNotFound) {
		t.Fatal("expected wrapped KeyNotFound")
	}
	if IsStore(errors.New("other"), KeyNotFound) {
		t.Fatal("plain error is not a StoreErr")
	}
}
