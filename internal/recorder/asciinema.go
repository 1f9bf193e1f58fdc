// Package recorder writes shell session transcripts in Asciinema v2
// JSON-Lines format.
package recorder

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Header is the first line of an Asciinema v2 recording.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is a single recording event. Serialized form:
// [time_offset, event_type, data]
type Event struct {
	TimeOffset float64
	EventType  string // "o" for output, "i" for input
	Data       string
}

// MarshalJSON renders the event as the three-element array the format
// requires.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.TimeOffset, e.EventType, e.Data})
}

// UnmarshalJSON parses the three-element array form.
func (e *Event) UnmarshalJSON(data []byte) error {
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid event format: expected 3 elements, got %d", len(arr))
	}

	timeOffset, ok := arr[0].(float64)
	if !ok {
		return fmt.Errorf("invalid time offset type")
	}
	e.TimeOffset = timeOffset

	eventType, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid event type")
	}
	e.EventType = eventType

	eventData, ok := arr[2].(string)
	if !ok {
		return fmt.Errorf("invalid event data type")
	}
	e.Data = eventData

	return nil
}

// Recorder records one shell session's traffic. Safe for concurrent use;
// the relay goroutine writes output while the inbound path writes input.
type Recorder struct {
	writer    io.Writer
	file      *os.File // only set if we own the file
	startTime time.Time
	mu        sync.Mutex
}

// New creates a recorder writing to filePath and emits the v2 header.
func New(filePath string, cols, rows int) (*Recorder, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	r := &Recorder{
		writer:    file,
		file:      file,
		startTime: time.Now(),
	}
	if err := r.writeHeader(cols, rows); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// NewWithWriter creates a recorder over an arbitrary writer, header
// included. Used by tests.
func NewWithWriter(w io.Writer, cols, rows int) (*Recorder, error) {
	r := &Recorder{
		writer:    w,
		startTime: time.Now(),
	}
	if err := r.writeHeader(cols, rows); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) writeHeader(cols, rows int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	header := Header{
		Version:   2,
		Width:     cols,
		Height:    rows,
		Timestamp: r.startTime.Unix(),
	}

	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if _, err := r.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// WriteOutput records remote-to-client bytes.
func (r *Recorder) WriteOutput(data []byte) error {
	return r.writeEvent("o", data)
}

// WriteInput records client-to-remote bytes.
func (r *Recorder) WriteInput(data []byte) error {
	return r.writeEvent("i", data)
}

func (r *Recorder) writeEvent(eventType string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event := Event{
		TimeOffset: time.Since(r.startTime).Seconds(),
		EventType:  eventType,
		Data:       string(data),
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := r.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Close flushes and closes the recording file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
