// Package message defines the tagged messages exchanged between a page
// session and the privileged background, plus the runtime that carries
// them and the page-level broadcast channel custom script results arrive on.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type names as they appear on the wire.
const (
	TypeContentReady   = "content_ready"
	TypeApplyCustomJS  = "apply_custom_js"
	TypeTogglePanel    = "toggle_panel"
	TypeCustomJSResult = "custom_js_result"
)

// Source tags page broadcasts that come from swissutil itself.
const Source = "swiss-utility"

// Message is one of ContentReady, ApplyCustomJS, TogglePanel or
// CustomJSResult.
type Message interface {
	Type() string
	sealed()
}

// ContentReady announces a page session finished initialising.
type ContentReady struct {
	URL string `json:"url"`
}

// ApplyCustomJS asks the background to run code in the page's main world.
type ApplyCustomJS struct {
	Code  string `json:"code"`
	JobID string `json:"jobId"`
}

// TogglePanel flips the control panel's visibility.
type TogglePanel struct{}

// CustomJSResult reports the outcome of an ApplyCustomJS job.
type CustomJSResult struct {
	Source string `json:"source"`
	JobID  string `json:"jobId"`
	OK     bool   `json:"ok"`
}

func (ContentReady) Type() string   { return TypeContentReady }
func (ApplyCustomJS) Type() string  { return TypeApplyCustomJS }
func (TogglePanel) Type() string    { return TypeTogglePanel }
func (CustomJSResult) Type() string { return TypeCustomJSResult }

func (ContentReady) sealed()   {}
func (ApplyCustomJS) sealed()  {}
func (TogglePanel) sealed()    {}
func (CustomJSResult) sealed() {}

// Response is the reply to a sent message.
type Response struct {
	OK bool `json:"ok"`
}

// Envelope is the JSON form of a message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrUnknownType is returned by Decode for an unrecognised type tag.
var ErrUnknownType = errors.New("message: unknown type")

// Encode wraps m in an envelope.
func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("message: encode %s: %w", m.Type(), err)
	}
	return json.Marshal(Envelope{Type: m.Type(), Payload: payload})
}

// Decode parses an envelope.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("message: decode envelope: %w", err)
	}
	var m Message
	switch env.Type {
	case TypeContentReady:
		var v ContentReady
		if err := unmarshalPayload(env.Payload, &v); err != nil {
			return nil, err
		}
		m = v
	case TypeApplyCustomJS:
		var v ApplyCustomJS
		if err := unmarshalPayload(env.Payload, &v); err != nil {
			return nil, err
		}
		m = v
	case TypeTogglePanel:
		m = TogglePanel{}
	case TypeCustomJSResult:
		var v CustomJSResult
		if err := unmarshalPayload(env.Payload, &v); err != nil {
			return nil, err
		}
		m = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return m, nil
}

func unmarshalPayload(p json.RawMessage, v any) error {
	if len(p) == 0 || string(p) == "null" {
		return nil
	}
	if err := json.Unmarshal(p, v); err != nil {
		return fmt.Errorf("message: decode payload: %w", err)
	}
	return nil
}
