package player

import (
	"context"
	"errors"
	"testing"
)

func TestSilent(t *testing.T) {
	ctx := context.Background()
	s := NewSilent()

	if err := s.Load(ctx, "https://x/b/one.wav"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ev := <-s.Events()
	if ev.Kind != EventCanPlay {
		t.Errorf("expected canplay after load, got %v", ev.Kind)
	}
	if s.Source() != "https://x/b/one.wav" {
		t.Errorf("unexpected source %q", s.Source())
	}

	for name, op := range map[string]func() error{
		"play":   func() error { return s.Play(ctx) },
		"pause":  func() error { return s.Pause(ctx) },
		"seek":   func() error { return s.Seek(ctx, 3) },
		"volume": func() error { return s.SetVolume(ctx, 0.5) },
	} {
		if err := op(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-s.Events(); ok {
		t.Error("expected events channel closed")
	}
	if err := s.Play(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
