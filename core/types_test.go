package core

import (
	"context"
	"errors"
	"testing"
	"time"

	nlerrors "gitlab.com/NebulousLabs/errors"
)

func TestValidID(t *testing.T) {
	good := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	if !ValidID(good) {
		t.Fatalf("expected %q to be valid", good)
	}
	bad := []string{"", "short", good + "x", "bad*chars*not*allowed*here*1234567890123"}
	for _, id := range bad {
		if ValidID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	base := NewError("gateway", KindTransient, errors.New("timeout"))
	wrapped := nlerrors.AddContext(base, "fetching raw bytes")
	if !IsKind(wrapped, KindTransient) {
		t.Fatalf("expected wrapped error to report KindTransient")
	}
	if IsKind(wrapped, KindFatal) {
		t.Fatalf("did not expect KindFatal")
	}
}

func TestCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if err := CheckCancelled("x", ctx); err != nil {
		t.Fatalf("expected no error before cancel, got %v", err)
	}
	cancel()
	err := CheckCancelled("x", ctx)
	if !IsKind(err, KindCancelled) {
		t.Fatalf("expected KindCancelled, got %v", err)
	}
}

func TestCheckCancelledDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)
	if err := CheckCancelled("x", ctx); !IsKind(err, KindCancelled) {
		t.Fatalf("expected KindCancelled on deadline exceeded, got %v", err)
	}
}
