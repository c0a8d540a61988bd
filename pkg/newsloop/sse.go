package newsloop

import (
	"bufio"
	"io"
	"strings"
)

// Event is one dispatched Server-Sent Event.
type Event struct {
	Name string // Event type; "message" when the server did not name it
	Data string // Data lines joined with "\n"
	ID   string // Last event ID seen on the stream
}

// DefaultEventName is the type of events sent without an "event:" field.
const DefaultEventName = "message"

// eventReader parses the text/event-stream format.
//
// Fields are accumulated until a blank line dispatches the event. Comment
// lines (leading ':') and "retry:" are skipped; the client never
// reconnects on its own.
type eventReader struct {
	scanner *bufio.Scanner
	lastID  string
}

func newEventReader(r io.Reader) *eventReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 1<<20)
	s.Split(scanEventLines)
	return &eventReader{scanner: s}
}

// next returns the next event, or io.EOF once the stream ends. A partial
// event left without a terminating blank line is discarded, matching
// browser EventSource behavior.
func (r *eventReader) next() (Event, error) {
	var (
		name    string
		data    strings.Builder
		hasData bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if !hasData {
				name = ""
				continue
			}
			if name == "" {
				name = DefaultEventName
			}
			return Event{Name: name, Data: data.String(), ID: r.lastID}, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			name = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastID = value
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// scanEventLines splits on "\n", "\r\n" or a lone "\r".
func scanEventLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		switch b {
		case '\n':
			return i + 1, data[:i], nil
		case '\r':
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			// need one more byte to tell "\r" from "\r\n"
			return 0, nil, nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
