package models

import (
	"time"
)

// Chat roles as the upstream model understands them.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// HistoryTurn is one prior turn sent by the client.
type HistoryTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ImageData is an inline image attached to the final user turn.
type ImageData struct {
	Data     []byte
	MimeType string
}

// ChatRequest is built per HTTP call and never persisted as such.
type ChatRequest struct {
	Message           string
	SystemInstruction string
	History           []HistoryTurn
	Image             *ImageData
}

// User represents an account scoped to exactly one department
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	DepartmentID string    `json:"departmentId" bson:"department_id"`
	Role         string    `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}

// Department is an access-control partition
type Department struct {
	ID                string    `json:"id" bson:"_id"`
	Name              string    `json:"name" bson:"name"`
	AccessCodeHash    string    `json:"-" bson:"access_code_hash,omitempty"`
	SystemInstruction string    `json:"-" bson:"system_instruction,omitempty"`
	CreatedAt         time.Time `json:"createdAt" bson:"created_at"`
}

// RequiresAccessCode reports whether chats in the department need a code
func (d *Department) RequiresAccessCode() bool {
	return d.AccessCodeHash != ""
}

// Conversation groups the messages of one chat thread
type Conversation struct {
	ID           string    `json:"id" bson:"_id"`
	UserID       string    `json:"userId" bson:"user_id"`
	DepartmentID string    `json:"departmentId" bson:"department_id"`
	Title        string    `json:"title" bson:"title"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}

// Message is one persisted turn of a conversation
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversationId" bson:"conversation_id"`
	Role           string    `json:"role" bson:"role"`
	Text           string    `json:"text" bson:"text"`
	HasImage       bool      `json:"hasImage,omitempty" bson:"has_image,omitempty"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
}

// UsageRecord is an append-only log entry written once per completed request
type UsageRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	TotalTokens  int       `json:"totalTokens"`
	DurationMs   int64     `json:"durationMs"`
}

// WebResult is a single ranked search hit
type WebResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// WebContext is the outcome of a successful grounding search
type WebContext struct {
	Results     []WebResult
	LastUpdated time.Time
}

// WeatherData is the current weather for a resolved location
type WeatherData struct {
	Location    string  `json:"location"`
	Country     string  `json:"country,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feelsLike"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	Condition   string  `json:"condition"`
	ObservedAt  string  `json:"observedAt"`
}

// TimeData is the current local time for a resolved location
type TimeData struct {
	Location string `json:"location"`
	Timezone string `json:"timezone"`
	ISO      string `json:"iso"`
	Time     string `json:"time"`
	Date     string `json:"date"`
	Weekday  string `json:"weekday"`
}
