package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrClosed is returned for commands issued after the connection closed
var ErrClosed = errors.New("player: connection closed")

// maxLineSize bounds a single IPC message; track metadata can be large
const maxLineSize = 1 << 20

// ipcRequest is one mpv JSON IPC command line
type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage is anything mpv writes back: a reply or an event
type ipcMessage struct {
	Event     string          `json:"event,omitempty"`
	Name      string          `json:"name,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	FileError string          `json:"file_error,omitempty"`
	Error     string          `json:"error,omitempty"`
	RequestID *int64          `json:"request_id,omitempty"`
}

type ipcReply struct {
	data json.RawMessage
	err  error
}

// ipcConn multiplexes commands and events over one mpv socket.
// Replies are matched to commands by request_id; everything else is
// delivered on events in arrival order.
type ipcConn struct {
	conn net.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan ipcReply
	closed  bool

	events chan ipcMessage
	done   chan struct{}
}

func newIPCConn(conn net.Conn) *ipcConn {
	c := &ipcConn{
		conn:    conn,
		pending: make(map[int64]chan ipcReply),
		events:  make(chan ipcMessage, 64),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// command sends args as an mpv command and waits for its reply
func (c *ipcConn) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan ipcReply, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(ctx, ipcRequest{Command: args, RequestID: id}); err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// write sends one newline-terminated JSON message, honoring the
// context deadline if there is one
func (c *ipcConn) write(ctx context.Context, req ipcRequest) error {
	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(dl)
		defer func() { _ = c.conn.SetWriteDeadline(time.Time{}) }()
	}
	if _, err := c.conn.Write(line); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// readLoop is the only sender on events and closes it on exit
func (c *ipcConn) readLoop() {
	defer close(c.events)
	defer c.shutdown()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}

		if msg.Event == "" && msg.RequestID != nil {
			c.resolve(*msg.RequestID, msg)
			continue
		}
		if msg.Event == "" {
			continue
		}

		select {
		case c.events <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *ipcConn) resolve(id int64, msg ipcMessage) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return
	}

	var r ipcReply
	if msg.Error != "" && msg.Error != "success" {
		r.err = fmt.Errorf("mpv: %s", msg.Error)
	} else {
		r.data = msg.Data
	}
	ch <- r
}

// shutdown marks the connection closed and releases waiters
func (c *ipcConn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *ipcConn) close() error {
	err := c.conn.Close()
	c.shutdown()
	return err
}
