package newsloop

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const pathGenerate = "/v1/Generate_now"

// GenerationService starts server-side audio generation jobs.
type GenerationService struct {
	client *Client
}

// Stream is an open generation progress stream.
//
// Next must be called from a single goroutine. Close may be called from
// any goroutine, any number of times; it unblocks a pending Next.
type Stream struct {
	body   io.ReadCloser
	reader *eventReader
	cancel context.CancelFunc

	closeOnce sync.Once
}

// Start opens the progress stream for a new generation job.
//
// The request is sent with the session cookies, like a credentialed
// EventSource. The configured HTTP client timeout does not apply: the
// stream lives until the server ends it or Close is called.
//
// Example:
//
//	stream, err := client.Generation().Start(ctx)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    ev, err := stream.Next()
//	    if err != nil {
//	        break
//	    }
//	    fmt.Println(ev.Data)
//	}
func (s *GenerationService) Start(ctx context.Context) (*Stream, error) {
	c := s.client
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(ctx, http.MethodGet, pathGenerate, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	c.logDebugf("newsloop: opening generation stream")

	resp, err := c.streamingClient().Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("newsloop: open generation stream: %w", err)
	}
	c.storeCookies(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		cancel()
		return nil, statusError(resp, body)
	}

	return &Stream{
		body:   resp.Body,
		reader: newEventReader(resp.Body),
		cancel: cancel,
	}, nil
}

// streamingClient returns a copy of the HTTP client without the overall
// request timeout, which would otherwise cut long jobs short.
func (c *Client) streamingClient() *http.Client {
	if c.httpClient.Timeout == 0 {
		return c.httpClient
	}
	cp := *c.httpClient
	cp.Timeout = 0
	return &cp
}

// Next blocks until the next event arrives. It returns io.EOF when the
// server closes the stream and a non-nil error after Close.
func (s *Stream) Next() (Event, error) {
	return s.reader.next()
}

// Close terminates the stream. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.body.Close()
	})
	return err
}
