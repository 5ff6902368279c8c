package middleware

import (
	"fmt"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// MaxMessageLength is the longest chat message accepted, in runes
const MaxMessageLength = 32000

// SecurityMiddleware provides input checks
type SecurityMiddleware struct {
	logger *logrus.Logger
}

// NewSecurityMiddleware creates security middleware
func NewSecurityMiddleware(logger *logrus.Logger) *SecurityMiddleware {
	return &SecurityMiddleware{
		logger: logger,
	}
}

// ValidateInput performs input validation on a chat message
func (s *SecurityMiddleware) ValidateInput(text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("message is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(text); n > MaxMessageLength {
		s.logger.WithField("length", n).Warn("Message too long")
		return fmt.Errorf("message too long: %d characters (max %d)", n, MaxMessageLength)
	}
	return nil
}
