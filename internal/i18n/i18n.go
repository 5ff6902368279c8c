package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Languages shipped with the binary
var Languages = []string{"en", "zh"}

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range Languages {
		if _, err := bundle.LoadMessageFileFS(localeFS, fmt.Sprintf("locales/%s.json", lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	defaultLanguage := cfg.DefaultLanguage
	if _, ok := localizers[defaultLanguage]; !ok {
		defaultLanguage = "en"
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: defaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message, or the message ID when it is unknown
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	msg, ok := l.Lookup(lang, messageID, data)
	if !ok {
		return messageID
	}
	return msg
}

// Lookup returns the localized message and whether it exists
func (l *Localizer) Lookup(lang, messageID string, data map[string]interface{}) (string, bool) {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return "", false
	}
	return msg, true
}

// LanguageFor picks the best supported language from the Accept-Language header
func (l *Localizer) LanguageFor(r *http.Request) string {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil {
		return l.defaultLanguage
	}
	for _, tag := range tags {
		base, _ := tag.Base()
		if _, ok := l.localizers[base.String()]; ok {
			return base.String()
		}
	}
	return l.defaultLanguage
}

// Message IDs
const (
	MsgMissingToken         = "missing_token"
	MsgInvalidToken         = "invalid_token"
	MsgTokenExpired         = "token_expired"
	MsgDepartmentMismatch   = "department_mismatch"
	MsgAccessCodeRequired   = "access_code_required"
	MsgAccessCodeInvalid    = "access_code_invalid"
	MsgRateLimitExceeded    = "rate_limit_exceeded"
	MsgQuotaExceeded        = "quota_exceeded"
	MsgUpstreamTimeout      = "upstream_timeout"
	MsgMessageRequired      = "message_required"
	MsgInvalidBody          = "invalid_body"
	MsgServerError          = "server_error"
	MsgInvalidCredentials   = "invalid_credentials"
	MsgConversationNotFound = "conversation_not_found"
	MsgNoResponse           = "no_response"
)
