package live

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/swissutil/reader"
)

// Sink receives what happens on a mirrored page.
type Sink interface {
	Update(u Update) error
	Rebuild(ev reader.RebuildEvent) error
	Close() error
}

// JSONLines writes one JSON object per event to an io.Writer.
type JSONLines struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewJSONLines creates a JSONLines sink. If w is nil, os.Stdout is used.
func NewJSONLines(w io.Writer) *JSONLines {
	if w == nil {
		w = os.Stdout
	}
	return &JSONLines{w: w, enc: json.NewEncoder(w)}
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// updateSummary leaves the body out of the line.
type updateSummary struct {
	Seq   uint64 `json:"seq"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Bytes int    `json:"bytes"`
}

func (s *JSONLines) Update(u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "update", Data: updateSummary{
		Seq: u.Seq, URL: u.URL, Title: u.Title, Bytes: len(u.HTML),
	}})
}

func (s *JSONLines) Rebuild(ev reader.RebuildEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "rebuild", Data: ev})
}

// Close closes the writer when it is an io.Closer other than stdout.
func (s *JSONLines) Close() error {
	if c, ok := s.w.(io.Closer); ok && s.w != os.Stdout {
		return c.Close()
	}
	return nil
}

// Callback forwards events to functions. Nil functions are skipped.
type Callback struct {
	OnUpdate  func(Update)
	OnRebuild func(reader.RebuildEvent)
}

func (c Callback) Update(u Update) error {
	if c.OnUpdate != nil {
		c.OnUpdate(u)
	}
	return nil
}

func (c Callback) Rebuild(ev reader.RebuildEvent) error {
	if c.OnRebuild != nil {
		c.OnRebuild(ev)
	}
	return nil
}

func (Callback) Close() error { return nil }
