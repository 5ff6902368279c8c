package ai

import (
	"encoding/base64"
	"testing"

	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptContentsHistory(t *testing.T) {
	req := &models.ChatRequest{
		Message: "how are you?",
		History: []models.HistoryTurn{
			{Role: models.RoleUser, Text: "hi"},
			{Role: models.RoleModel, Text: "hello"},
		},
	}

	contents := BuildPromptContents(req, "", 20)
	require.False(t, contents.IsBare())
	require.Len(t, contents.Turns, 3)

	assert.Equal(t, models.RoleUser, contents.Turns[0].Role)
	assert.Equal(t, "hi", contents.Turns[0].Parts[0].Text)
	assert.Equal(t, models.RoleModel, contents.Turns[1].Role)
	assert.Equal(t, "hello", contents.Turns[1].Parts[0].Text)
	assert.Equal(t, models.RoleUser, contents.Turns[2].Role)
	assert.Equal(t, "how are you?", contents.Turns[2].Parts[0].Text)
}

func TestBuildPromptContentsCollapsesToBareMessage(t *testing.T) {
	contents := BuildPromptContents(&models.ChatRequest{Message: "hello"}, "", 20)
	assert.True(t, contents.IsBare())
	assert.Equal(t, "hello", contents.Text)

	wire := contents.Wire()
	require.Len(t, wire, 1)
	assert.Equal(t, models.RoleUser, wire[0].Role)
	assert.Equal(t, "hello", wire[0].Parts[0].Text)
}

func TestBuildPromptContentsContextTurn(t *testing.T) {
	req := &models.ChatRequest{Message: "what's the weather in Paris?"}

	contents := BuildPromptContents(req, "Current weather in Paris: sunny.", 20)
	require.Len(t, contents.Turns, 2)
	assert.Equal(t, models.RoleUser, contents.Turns[0].Role)
	assert.Contains(t, contents.Turns[0].Parts[0].Text, "Current weather in Paris: sunny.")
	assert.Equal(t, "what's the weather in Paris?", contents.Turns[1].Parts[0].Text)
}

func TestBuildPromptContentsImage(t *testing.T) {
	req := &models.ChatRequest{
		Message: "what is in this picture?",
		Image:   &models.ImageData{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png"},
	}

	contents := BuildPromptContents(req, "", 20)
	require.Len(t, contents.Turns, 1)
	parts := contents.Turns[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "what is in this picture?", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}), parts[1].InlineData.Data)
}

func TestBuildPromptContentsTrimsHistory(t *testing.T) {
	var history []models.HistoryTurn
	for i := 0; i < 30; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleModel
		}
		history = append(history, models.HistoryTurn{Role: role, Text: string(rune('a' + i%26))})
	}

	contents := BuildPromptContents(&models.ChatRequest{Message: "and then?", History: history}, "", 4)
	require.Len(t, contents.Turns, 5)
	assert.Equal(t, history[26].Text, contents.Turns[0].Parts[0].Text)
}

func TestBuildPromptContentsSkipsHistoryForStandaloneQuestions(t *testing.T) {
	req := &models.ChatRequest{
		Message: "Write a detailed essay about the history of the Roman empire please",
		History: []models.HistoryTurn{{Role: models.RoleUser, Text: "hi"}, {Role: models.RoleModel, Text: "hello"}},
	}

	contents := BuildPromptContents(req, "", 20)
	assert.True(t, contents.IsBare())
}

func TestIsFollowUp(t *testing.T) {
	tests := []struct {
		message  string
		expected bool
	}{
		{"why?", true},
		{"What about the second option you mentioned earlier in our chat today", true},
		{"Can you rewrite it so the tone is a bit more formal for my manager", true},
		{"Write a detailed essay about the history of the Roman empire please", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFollowUp(tt.message))
		})
	}
}
