package session

import (
	"errors"
	"io"
	"testing"

	"github.com/jfmyers9/loopdeck/internal/history"
	"github.com/jfmyers9/loopdeck/pkg/newsloop"
)

func TestGenerationSuccess(t *testing.T) {
	r := newTestRig(t, threeTracks...)

	r.c.handle(cmdGenerate{})
	if r.c.gen.Status != GenerationRunning || r.c.gen.StatusText != InitLabel {
		t.Fatalf("expected running with init label, got %+v", r.c.gen)
	}
	job := r.c.gen.JobID
	r.drain()

	if len(r.streamer.opened) != 1 {
		t.Fatalf("expected one stream opened, got %d", len(r.streamer.opened))
	}
	if len(r.readers) != 1 || r.readers[0] != job {
		t.Fatalf("expected a reader for job %s, got %v", job, r.readers)
	}

	for _, msg := range []string{"Fetching sources", "Writing script", "Recording audio"} {
		r.message(msg)
		if r.c.gen.StatusText != msg {
			t.Errorf("expected status %q, got %q", msg, r.c.gen.StatusText)
		}
	}

	r.message("Audio file generated successfully")
	if r.c.gen.Status != GenerationTerminal {
		t.Errorf("expected terminal status after success, got %v", r.c.gen.Status)
	}
	if r.lib.refreshCount() != 0 {
		t.Error("refresh must wait for the settle delay")
	}
	if len(r.timers) != 1 || r.timers[0].d != DefaultSettleDelay {
		t.Fatalf("expected one settle timer of %v", DefaultSettleDelay)
	}

	r.fireTimers()

	if r.c.gen.Status != GenerationIdle || r.c.gen.StatusText != IdleLabel || r.c.gen.JobID != "" {
		t.Errorf("expected idle with idle label, got %+v", r.c.gen)
	}
	if r.c.stream != nil {
		t.Error("expected stream handle cleared")
	}
	if r.streamer.opened[0].closeCount() != 1 {
		t.Errorf("expected stream closed once, got %d", r.streamer.opened[0].closeCount())
	}
	if r.lib.refreshCount() != 1 {
		t.Errorf("expected exactly one refresh, got %d", r.lib.refreshCount())
	}
	if got := r.log.outcome(job); got != history.OutcomeSucceeded {
		t.Errorf("expected succeeded in history, got %q", got)
	}
}

func TestGenerationErrorAfterSuccess(t *testing.T) {
	r := newTestRig(t, threeTracks...)
	r.c.handle(cmdGenerate{})
	r.drain()
	job := r.c.gen.JobID

	r.message("Audio file generated successfully")
	r.c.handle(streamFailed{job: job, err: io.EOF})

	if r.c.gen.StatusText != IdleLabel {
		t.Errorf("expected idle label, got %q", r.c.gen.StatusText)
	}
	if r.lib.refreshCount() != 1 {
		t.Errorf("expected one refresh, got %d", r.lib.refreshCount())
	}

	// the pending settle belongs to a finished job
	r.fireTimers()
	r.c.handle(streamDone{job: job})
	if r.lib.refreshCount() != 1 {
		t.Errorf("expected refresh at most once per job, got %d", r.lib.refreshCount())
	}
}

func TestGenerationFailure(t *testing.T) {
	r := newTestRig(t, threeTracks...)
	r.c.handle(cmdGenerate{})
	r.drain()
	job := r.c.gen.JobID

	r.message("Writing script")
	r.c.handle(streamFailed{job: job, err: errors.New("connection reset")})

	if r.c.gen.Status != GenerationIdle || r.c.gen.StatusText != FailedLabel {
		t.Errorf("expected idle with failed label, got %+v", r.c.gen)
	}
	if r.c.stream != nil || r.streamer.opened[0].closeCount() != 1 {
		t.Error("expected stream closed and cleared")
	}
	if r.lib.refreshCount() != 0 {
		t.Error("expected no refresh after failure")
	}
	if got := r.log.outcome(job); got != history.OutcomeFailed {
		t.Errorf("expected failed in history, got %q", got)
	}
}

func TestGenerationStartRejected(t *testing.T) {
	r := newTestRig(t, threeTracks...)
	r.streamer.failErr = &newsloop.Error{StatusCode: 401}

	r.c.handle(cmdGenerate{})
	r.drain()

	if r.c.gen.StatusText != FailedLabel || r.c.gen.Status != GenerationIdle {
		t.Errorf("expected failed idle job, got %+v", r.c.gen)
	}
	if r.c.stream != nil {
		t.Error("expected no stream handle")
	}
}

func TestGenerationDoneSignal(t *testing.T) {
	r := newTestRig(t, threeTracks...)
	r.c.handle(cmdGenerate{})
	r.drain()
	job := r.c.gen.JobID

	r.message("Recording audio")
	r.c.handle(streamDone{job: job})

	if r.c.gen.StatusText != IdleLabel || r.c.gen.Status != GenerationIdle {
		t.Errorf("expected idle after done, got %+v", r.c.gen)
	}
	if r.lib.refreshCount() != 1 {
		t.Errorf("expected one refresh after done, got %d", r.lib.refreshCount())
	}

	r.c.handle(streamFailed{job: job, err: io.EOF})
	if r.c.gen.StatusText != IdleLabel {
		t.Error("late error for a finished job must be ignored")
	}
}

func TestGenerationCancel(t *testing.T) {
	r := newTestRig(t, threeTracks...)
	r.c.handle(cmdGenerate{})
	r.drain()
	first := r.c.gen.JobID

	r.message("Writing script")
	r.c.handle(cmdGenerate{})

	if r.c.gen.Status != GenerationIdle || r.c.gen.StatusText != IdleLabel {
		t.Errorf("expected cancel to return to idle, got %+v", r.c.gen)
	}
	if r.c.stream != nil || r.streamer.opened[0].closeCount() != 1 {
		t.Error("expected the stream closed by cancel")
	}
	if len(r.streamer.opened) != 1 {
		t.Errorf("cancel must not open a stream, got %d opened", len(r.streamer.opened))
	}
	if r.lib.refreshCount() != 0 {
		t.Error("cancel must not refresh")
	}
	if got := r.log.outcome(first); got != history.OutcomeCancelled {
		t.Errorf("expected cancelled in history, got %q", got)
	}

	// messages still in flight from the cancelled stream
	r.c.handle(streamMessage{job: first, data: "Audio file generated successfully"})
	r.c.handle(streamFailed{job: first, err: io.EOF})
	if r.c.gen.StatusText != IdleLabel || len(r.timers) != 0 {
		t.Errorf("expected stale events ignored, got %+v", r.c.gen)
	}

	r.c.handle(cmdGenerate{})
	r.drain()
	if len(r.streamer.opened) != 2 || r.c.stream != Stream(r.streamer.opened[1]) {
		t.Error("expected a fresh stream for the new job")
	}
}

func TestGenerationCancelWhileConnecting(t *testing.T) {
	r := newTestRig(t, threeTracks...)

	r.c.handle(cmdGenerate{})
	// stream opened but not yet delivered to the loop
	r.c.handle(cmdGenerate{})
	r.drain()

	if len(r.streamer.opened) != 1 {
		t.Fatalf("expected one stream opened, got %d", len(r.streamer.opened))
	}
	if r.streamer.opened[0].closeCount() != 1 {
		t.Error("expected the late stream to be closed immediately")
	}
	if r.c.stream != nil || len(r.readers) != 0 {
		t.Error("expected no stream handle or reader for the cancelled job")
	}
}

func TestGenerationAtMostOneStream(t *testing.T) {
	r := newTestRig(t, threeTracks...)

	for i := 0; i < 7; i++ {
		r.c.handle(cmdGenerate{})
		r.drain()

		open := 0
		for _, s := range r.streamer.opened {
			if s.closeCount() == 0 {
				open++
			}
		}
		if open > 1 {
			t.Fatalf("after %d presses %d streams are open", i+1, open)
		}
	}
}

func TestReadStream(t *testing.T) {
	t.Run("messages then done", func(t *testing.T) {
		r := newTestRig(t)
		s := &fakeStream{script: []newsloop.Event{
			{Name: "message", Data: "one"},
			{Name: "progress", Data: "ignored"},
			{Name: "message", Data: "two"},
			{Name: "done", Data: "ok"},
			{Name: "message", Data: "after done"},
		}}

		r.c.readStream("job-1", s)

		want := []event{
			streamMessage{job: "job-1", data: "one"},
			streamMessage{job: "job-1", data: "two"},
			streamDone{job: "job-1"},
		}
		for i, w := range want {
			select {
			case got := <-r.c.inbox:
				if got != w {
					t.Errorf("event %d = %#v, want %#v", i, got, w)
				}
			default:
				t.Fatalf("missing event %d", i)
			}
		}
		if len(r.c.inbox) != 0 {
			t.Errorf("expected no events after done, got %d", len(r.c.inbox))
		}
	})

	t.Run("stream ends", func(t *testing.T) {
		r := newTestRig(t)
		s := &fakeStream{script: []newsloop.Event{{Name: "message", Data: "one"}}}

		r.c.readStream("job-2", s)

		<-r.c.inbox
		got := <-r.c.inbox
		failed, ok := got.(streamFailed)
		if !ok || failed.job != "job-2" || !errors.Is(failed.err, io.EOF) {
			t.Errorf("expected stream failure for job-2, got %#v", got)
		}
	})
}

func TestGenerationHookSeesEveryMessage(t *testing.T) {
	r := newTestRig(t, threeTracks...)
	updates := r.c.Subscribe()

	var seen []string
	r.c.onGen = func(g Generation) { seen = append(seen, g.StatusText) }

	r.c.handle(cmdGenerate{})
	r.drain()
	for _, msg := range []string{"Fetching news", "Writing script", "Synthesizing"} {
		r.message(msg)
	}
	r.message(SuccessMarker)
	r.fireTimers()

	want := []string{InitLabel, "Fetching news", "Writing script", "Synthesizing", SuccessMarker, IdleLabel}
	if len(seen) != len(want) {
		t.Fatalf("hook saw %q, want %q", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("update %d = %q, want %q", i, seen[i], want[i])
		}
	}

	// the snapshot feed only keeps the latest state
	snap := <-updates
	if snap.Generation.StatusText != IdleLabel {
		t.Errorf("expected latest snapshot idle, got %q", snap.Generation.StatusText)
	}
}

func TestGenerationHookReportsFailureAndCancel(t *testing.T) {
	r := newTestRig(t, threeTracks...)

	var seen []Generation
	r.c.onGen = func(g Generation) { seen = append(seen, g) }

	r.c.handle(cmdGenerate{})
	r.drain()
	r.c.handle(streamFailed{job: r.c.gen.JobID, err: errors.New("boom")})

	r.c.handle(cmdGenerate{})
	r.drain()
	r.c.handle(cmdGenerate{})

	if len(seen) != 4 {
		t.Fatalf("expected 4 updates, got %+v", seen)
	}
	if seen[0].JobID == "" || seen[2].JobID == "" || seen[0].JobID == seen[2].JobID {
		t.Errorf("expected two distinct running jobs, got %+v", seen)
	}
	if seen[1].JobID != "" || seen[1].StatusText != FailedLabel {
		t.Errorf("expected failure update, got %+v", seen[1])
	}
	if seen[3].JobID != "" || seen[3].StatusText != IdleLabel {
		t.Errorf("expected idle after cancel, got %+v", seen[3])
	}
}
