package markdown

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/russross/blackfriday/v2"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// ToHTML converts model markdown to HTML. Raw HTML in the source is dropped
// and links with unsafe schemes are rendered as plain text.
func ToHTML(markdown string) string {
	if markdown == "" {
		return ""
	}

	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML | blackfriday.Safelink | blackfriday.HrefTargetBlank,
	})
	out := string(blackfriday.Run(
		[]byte(markdown),
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
		blackfriday.WithRenderer(renderer),
	))

	return strings.TrimSpace(blankLines.ReplaceAllString(out, "\n\n"))
}

// plainToHTML escapes user text and keeps its line breaks
func plainToHTML(text string) string {
	escaped := html.EscapeString(text)
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>\n") + "</p>"
}

const exportStyle = `body{font-family:system-ui,sans-serif;max-width:760px;margin:2rem auto;padding:0 1rem;color:#1f2328}
.turn{margin:1rem 0;padding:.75rem 1rem;border-radius:8px}
.user{background:#eef4ff}
.model{background:#f6f8fa}
.role{font-size:.8rem;font-weight:600;text-transform:uppercase;color:#57606a}
pre{overflow-x:auto;background:#eaeef2;padding:.5rem;border-radius:6px}`

// RenderConversation renders a conversation as a standalone HTML page.
// Model turns are markdown; user turns are plain text.
func RenderConversation(conv *models.Conversation, messages []*models.Message) []byte {
	var b strings.Builder

	title := html.EscapeString(conv.Title)
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>%s</style>\n</head>\n<body>\n", title, exportStyle)
	fmt.Fprintf(&b, "<h1>%s</h1>\n<p class=\"role\">%s</p>\n", title, conv.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))

	for _, msg := range messages {
		role, body := "You", plainToHTML(msg.Text)
		if msg.Role == models.RoleModel {
			role, body = "Anything AI", ToHTML(msg.Text)
		}
		fmt.Fprintf(&b, "<div class=\"turn %s\">\n<div class=\"role\">%s</div>\n%s\n</div>\n", html.EscapeString(msg.Role), role, body)
	}

	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}
