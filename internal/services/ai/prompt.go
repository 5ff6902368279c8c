package ai

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/anything-ai/anything-ai/internal/models"
)

// Content is one role-tagged turn in the upstream wire format
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a text or inline-data piece of a turn
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64 encoded bytes such as an uploaded image
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// PromptContents is either the bare message text or a sequence of turns.
type PromptContents struct {
	Text  string
	Turns []Content
}

// IsBare reports whether the prompt collapsed to the message string
func (p PromptContents) IsBare() bool {
	return p.Turns == nil
}

// Wire returns the contents as sent upstream
func (p PromptContents) Wire() []Content {
	if p.IsBare() {
		return []Content{textContent(models.RoleUser, p.Text)}
	}
	return p.Turns
}

// Prompt is everything needed for one generation call
type Prompt struct {
	Contents          PromptContents
	SystemInstruction string
}

const contextPreamble = "Use the following up-to-date information when it is relevant to my next message. Do not mention that it was provided to you.\n\n"

// BuildPromptContents assembles history, an optional context turn and the
// final user turn. History is only included when the message reads like a
// follow-up and is trimmed to the last maxHistoryTurns turns.
func BuildPromptContents(req *models.ChatRequest, contextText string, maxHistoryTurns int) PromptContents {
	var history []models.HistoryTurn
	if len(req.History) > 0 && IsFollowUp(req.Message) {
		history = trimHistory(req.History, maxHistoryTurns)
	}

	if len(history) == 0 && req.Image == nil && contextText == "" {
		return PromptContents{Text: req.Message}
	}

	turns := make([]Content, 0, len(history)+2)
	for _, h := range history {
		if strings.TrimSpace(h.Text) == "" {
			continue
		}
		role := models.RoleUser
		if h.Role == models.RoleModel {
			role = models.RoleModel
		}
		turns = append(turns, textContent(role, h.Text))
	}

	if contextText != "" {
		turns = append(turns, textContent(models.RoleUser, contextPreamble+contextText))
	}

	final := textContent(models.RoleUser, req.Message)
	if req.Image != nil && len(req.Image.Data) > 0 {
		final.Parts = append(final.Parts, Part{InlineData: &InlineData{
			MimeType: req.Image.MimeType,
			Data:     base64.StdEncoding.EncodeToString(req.Image.Data),
		}})
	}
	turns = append(turns, final)

	return PromptContents{Text: req.Message, Turns: turns}
}

func textContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

func trimHistory(history []models.HistoryTurn, max int) []models.HistoryTurn {
	if max > 0 && len(history) > max {
		return history[len(history)-max:]
	}
	return history
}

const followUpMaxWords = 8

var followUpPrefixes = []string{
	"and ", "but ", "so ", "also", "then", "what about", "how about", "why",
	"what else", "tell me more", "more ", "continue", "explain", "elaborate",
}

var referentialPronoun = regexp.MustCompile(`(?i)\b(it|its|that|this|these|those|they|them|their|he|she|him|her)\b`)

// IsFollowUp guesses whether a message depends on earlier turns
func IsFollowUp(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	if len(strings.Fields(m)) <= followUpMaxWords {
		return true
	}
	for _, prefix := range followUpPrefixes {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return referentialPronoun.MatchString(m)
}
