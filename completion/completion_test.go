package completion

import (
	"context"
	"errors"
	"testing"
)

func TestCollectSliceStream(t *testing.T) {
	got, err := Collect(NewSliceStream("regis", "tered wor", "kers"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "registered workers" {
		t.Errorf("expect joined fragments, got %q", got)
	}
}

func TestChanStream(t *testing.T) {
	stream := NewChanStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		for _, v := range []string{"a", "b", "c"} {
			if !emit(v) {
				return ctx.Err()
			}
		}
		return nil
	})
	got, err := Collect(stream)
	if err != nil {
		t.Fatal(err)
	}
	if got != "abc" {
		t.Errorf("expect abc, got %q", got)
	}
}

func TestChanStreamError(t *testing.T) {
	boom := errors.New("boom")
	stream := NewChanStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		emit("partial")
		return boom
	})
	got, err := Collect(stream)
	if !errors.Is(err, boom) {
		t.Fatalf("expect boom, got %v", err)
	}
	if got != "partial" {
		t.Errorf("expect partial text, got %q", got)
	}
}

func TestChanStreamCloseEarly(t *testing.T) {
	stream := NewChanStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		for {
			if !emit("x") {
				return ctx.Err()
			}
		}
	})
	if _, err := stream.Recv(); err != nil {
		t.Fatal(err)
	}
	if err := stream.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := stream.Recv(); err == nil {
		t.Error("expect closed stream to stop")
	}
}
