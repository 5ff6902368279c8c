package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"
)

// getJSON performs a GET and decodes a 200 response into out
func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("lookup failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

var locationPrepositions = map[string]bool{"in": true, "at": true, "for": true}

// Words that end a location phrase or cannot start one.
var locationStopWords = map[string]bool{
	"today": true, "tomorrow": true, "tonight": true, "now": true, "right": true,
	"currently": true, "this": true, "next": true, "please": true, "the": true,
	"a": true, "an": true, "my": true, "me": true, "in": true, "at": true,
	"for": true, "on": true, "like": true, "and": true, "or": true, "is": true,
	"will": true, "be": true, "outside": true, "moment": true, "week": true,
	"weekend": true, "morning": true, "afternoon": true, "evening": true,
	"weather": true, "time": true, "there": true, "here": true, "it": true,
}

const maxLocationWords = 4

// extractLocation finds the place named after "in", "at" or "for" in a
// message, e.g. "what's the weather in New York today?" gives "New York".
func extractLocation(message string) string {
	clauses := strings.FieldsFunc(message, func(r rune) bool {
		return strings.ContainsRune("?!.,;:\n", r)
	})

	for _, clause := range clauses {
		words := strings.FieldsFunc(clause, func(r rune) bool {
			return !(unicode.IsLetter(r) || r == '-' || r == '\'')
		})
		for i := 0; i < len(words)-1; i++ {
			if !locationPrepositions[strings.ToLower(words[i])] {
				continue
			}
			var place []string
			for _, w := range words[i+1:] {
				if locationStopWords[strings.ToLower(w)] || len(place) == maxLocationWords {
					break
				}
				place = append(place, w)
			}
			if len(place) > 0 {
				return strings.Join(place, " ")
			}
		}
	}
	return ""
}
