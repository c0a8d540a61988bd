package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/jfmyers9/loopdeck/internal/session"
)

func TestJobFollower(t *testing.T) {
	idle := session.Generation{StatusText: session.IdleLabel}
	running := func(text string) session.Generation {
		return session.Generation{Status: session.GenerationRunning, StatusText: text, JobID: "job"}
	}

	tests := []struct {
		name     string
		updates  []session.Generation
		want     []string
		finished bool
		wantErr  bool
	}{
		{
			name: "success",
			updates: []session.Generation{
				running(session.InitLabel),
				running("Fetching news"),
				running("Writing script"),
				running("Writing script"),
				{Status: session.GenerationTerminal, StatusText: session.SuccessMarker, JobID: "job"},
				idle,
			},
			want:     []string{session.InitLabel, "Fetching news", "Writing script", "Writing script", session.SuccessMarker},
			finished: true,
		},
		{
			name: "failure",
			updates: []session.Generation{
				running(session.InitLabel),
				{StatusText: session.FailedLabel},
			},
			want:     []string{session.InitLabel, session.FailedLabel},
			finished: true,
			wantErr:  true,
		},
		{
			name:    "idle before start",
			updates: []session.Generation{idle},
		},
		{
			name:    "still running",
			updates: []session.Generation{running(session.InitLabel), running("Synthesizing")},
			want:    []string{session.InitLabel, "Synthesizing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			f := newJobFollower(func(s string) { got = append(got, s) })
			for _, g := range tt.updates {
				f.observe(g)
			}

			if len(got) != len(tt.want) {
				t.Fatalf("reported %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("status %d = %q, want %q", i, got[i], tt.want[i])
				}
			}

			select {
			case err := <-f.result:
				if !tt.finished {
					t.Fatalf("unexpected result %v", err)
				}
				if (err != nil) != tt.wantErr {
					t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
				}
			default:
				if tt.finished {
					t.Error("expected a result")
				}
			}
		})
	}
}

func TestFollowGenerationResult(t *testing.T) {
	result := make(chan error, 1)
	result <- nil

	if err := followGeneration(context.Background(), make(chan session.Snapshot), result); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestFollowGenerationNeedsLogin(t *testing.T) {
	ch := make(chan session.Snapshot, 1)
	ch <- session.Snapshot{NeedsLogin: true}

	err := followGeneration(context.Background(), ch, make(chan error))
	if !errors.Is(err, errNeedsLogin) {
		t.Errorf("expected errNeedsLogin, got %v", err)
	}
}

func TestFollowGenerationSessionClosed(t *testing.T) {
	ch := make(chan session.Snapshot)
	close(ch)

	if err := followGeneration(context.Background(), ch, make(chan error)); err == nil {
		t.Error("expected error for closed session")
	}
}

func TestFollowGenerationCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := followGeneration(ctx, make(chan session.Snapshot), make(chan error))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
