package models

import (
	"encoding/json"
	"time"
)

// StreamEvent is one frame of a chat response. The concrete types are
// TokenEvent, MetaEvent, DoneEvent and ErrorEvent.
type StreamEvent interface {
	// Terminal reports whether the event closes the sequence.
	Terminal() bool
	isStreamEvent()
}

// TokenEvent carries a chunk of generated text.
type TokenEvent struct {
	Text string
}

// MetaEvent carries the context that was injected into the prompt.
type MetaEvent struct {
	WebResults  []WebResult
	LastUpdated *time.Time
	Weather     *WeatherData
	Time        *TimeData
}

// Usage totals reported with the done event.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// DoneEvent closes a successful response.
type DoneEvent struct {
	Usage *Usage
}

// ErrorEvent closes a failed response.
type ErrorEvent struct {
	Code    string
	Message string
}

func (TokenEvent) Terminal() bool { return false }
func (MetaEvent) Terminal() bool  { return false }
func (DoneEvent) Terminal() bool  { return true }
func (ErrorEvent) Terminal() bool { return true }

func (TokenEvent) isStreamEvent() {}
func (MetaEvent) isStreamEvent()  {}
func (DoneEvent) isStreamEvent()  {}
func (ErrorEvent) isStreamEvent() {}

func (e TokenEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"token", e.Text})
}

func (e MetaEvent) MarshalJSON() ([]byte, error) {
	frame := struct {
		Type        string       `json:"type"`
		WebResults  []WebResult  `json:"webResults,omitempty"`
		LastUpdated string       `json:"lastUpdated,omitempty"`
		Weather     *WeatherData `json:"weather,omitempty"`
		Time        *TimeData    `json:"time,omitempty"`
	}{Type: "meta", WebResults: e.WebResults, Weather: e.Weather, Time: e.Time}
	if e.LastUpdated != nil {
		frame.LastUpdated = e.LastUpdated.UTC().Format(time.RFC3339)
	}
	return json.Marshal(frame)
}

func (e DoneEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Usage *Usage `json:"usage,omitempty"`
	}{"done", e.Usage})
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error   bool   `json:"error"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}{true, e.Code, e.Message})
}

// ConversationFrame announces a newly created conversation. It precedes the
// stream events and is not one of them.
type ConversationFrame struct {
	ConversationID string
	Title          string
}

func (f ConversationFrame) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type           string `json:"type"`
		ConversationID string `json:"conversationId"`
		Title          string `json:"title"`
	}{"conversation", f.ConversationID, f.Title})
}
