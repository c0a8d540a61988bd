package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jfmyers9/loopdeck/internal/history"
	"github.com/jfmyers9/loopdeck/pkg/newsloop"
)

// Status labels of the generation job
const (
	IdleLabel   = "Generate Now"
	InitLabel   = "Initializing..."
	FailedLabel = "Generation Failed"

	// SuccessMarker in a status message means the job produced a file
	SuccessMarker = "Audio file generated successfully"

	doneEventName  = "done"
	historyTimeout = 5 * time.Second
)

// startOrCancel starts a job when idle and cancels the current one
// otherwise. A job that already reported success settles instead.
func (c *Controller) startOrCancel() {
	switch c.gen.Status {
	case GenerationRunning:
		c.cancelJob()
		return
	case GenerationTerminal:
		c.settle(c.gen.JobID)
		return
	}

	job := uuid.NewString()
	c.gen = Generation{Status: GenerationRunning, StatusText: InitLabel, JobID: job}
	c.successSeen = false
	c.logger.Info().Str("job", job).Msg("Starting generation")
	c.notifyGeneration()

	if c.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		if err := c.history.Start(ctx, job, c.now()); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record job start")
		}
		cancel()
	}

	c.spawn(func() {
		s, err := c.streamer.Start(c.ctx)
		c.post(streamOpened{job: job, stream: s, err: err})
	})
}

func (c *Controller) cancelJob() {
	job := c.gen.JobID
	c.logger.Info().Str("job", job).Msg("Generation cancelled")

	c.closeStream()
	c.stopSettle()
	c.finishJob(job, history.OutcomeCancelled)
	c.gen = Generation{StatusText: IdleLabel}
	c.notifyGeneration()
}

func (c *Controller) onStreamOpened(e streamOpened) {
	if e.job != c.gen.JobID {
		// cancelled while connecting
		if e.stream != nil {
			_ = e.stream.Close()
		}
		return
	}

	if e.err != nil {
		c.logger.Error().Err(e.err).Str("job", e.job).Msg("Failed to start generation")
		c.fail(e.job)
		return
	}

	c.stream = e.stream
	c.streamReader(e.job, e.stream)
}

func (c *Controller) onStreamMessage(e streamMessage) {
	if e.job != c.gen.JobID {
		return
	}

	defer c.notifyGeneration()
	c.gen.StatusText = e.data
	c.logger.Debug().Str("job", e.job).Str("status", e.data).Msg("Generation progress")

	if c.successSeen || !strings.Contains(e.data, SuccessMarker) {
		return
	}

	c.successSeen = true
	c.gen.Status = GenerationTerminal
	job := e.job
	c.settleTimer = c.afterFunc(c.settleDelay, func() {
		c.post(generationSettled{job: job})
	})
}

func (c *Controller) onStreamDone(e streamDone) {
	if e.job != c.gen.JobID {
		return
	}
	c.settle(e.job)
}

func (c *Controller) onStreamFailed(e streamFailed) {
	if e.job != c.gen.JobID {
		return
	}

	if c.successSeen {
		// teardown after success is not a failure
		c.settle(e.job)
		return
	}

	c.logger.Error().Err(e.err).Str("job", e.job).Msg("Generation stream failed")
	c.fail(e.job)
}

func (c *Controller) onSettled(e generationSettled) {
	if e.job != c.gen.JobID {
		return
	}
	c.settle(e.job)
}

// settle ends a successful job: close the stream, go idle and refresh
// the playlist. The job id is cleared, so this runs at most once per job.
func (c *Controller) settle(job string) {
	c.closeStream()
	c.stopSettle()
	c.finishJob(job, history.OutcomeSucceeded)
	c.gen = Generation{StatusText: IdleLabel}
	c.successSeen = false
	c.notifyGeneration()

	c.logger.Info().Str("job", job).Msg("Generation finished")
	c.refresh()
}

func (c *Controller) fail(job string) {
	c.closeStream()
	c.stopSettle()
	c.finishJob(job, history.OutcomeFailed)
	c.gen = Generation{StatusText: FailedLabel}
	c.successSeen = false
	c.notifyGeneration()
}

// notifyGeneration hands the current generation state to the
// OnGeneration hook. Unlike snapshots, no update is coalesced.
func (c *Controller) notifyGeneration() {
	if c.onGen != nil {
		c.onGen(c.gen)
	}
}

// closeStream closes and forgets the stream handle
func (c *Controller) closeStream() {
	if c.stream == nil {
		return
	}
	s := c.stream
	c.stream = nil
	if err := s.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Error closing generation stream")
	}
}

func (c *Controller) stopSettle() {
	if c.settleTimer != nil {
		c.settleTimer.Stop()
		c.settleTimer = nil
	}
}

func (c *Controller) finishJob(job string, outcome history.Outcome) {
	if c.history == nil || job == "" {
		return
	}
	status := c.gen.StatusText
	if outcome == history.OutcomeFailed {
		status = FailedLabel
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := c.history.Finish(ctx, job, outcome, status, c.now()); err != nil {
		c.logger.Warn().Err(err).Str("job", job).Msg("Failed to record job outcome")
	}
}

// readStream delivers a stream's events to the loop in arrival order,
// tagged with the job they belong to
func (c *Controller) readStream(job string, s Stream) {
	for {
		ev, err := s.Next()
		if err != nil {
			c.post(streamFailed{job: job, err: err})
			return
		}

		switch ev.Name {
		case doneEventName:
			c.post(streamDone{job: job})
			return
		case newsloop.DefaultEventName:
			c.post(streamMessage{job: job, data: ev.Data})
		}
	}
}
