package i18n

import (
	"net/http/httptest"
	"testing"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalizerGet(t *testing.T) {
	l, err := NewLocalizer(&config.I18nConfig{DefaultLanguage: "en"})
	require.NoError(t, err)

	assert.Equal(t, "The access code is incorrect.", l.Get("en", MsgAccessCodeInvalid, nil))
	assert.Equal(t, "访问码错误。", l.Get("zh", MsgAccessCodeInvalid, nil))
	assert.Equal(t, "The access code is incorrect.", l.Get("fr", MsgAccessCodeInvalid, nil), "unknown language falls back")
	assert.NotEqual(t, l.Get("en", MsgInvalidToken, nil), l.Get("en", MsgTokenExpired, nil))
	assert.NotEqual(t, l.Get("zh", MsgInvalidToken, nil), l.Get("zh", MsgTokenExpired, nil))
	assert.Equal(t, "no_such_message", l.Get("en", "no_such_message", nil))

	_, ok := l.Lookup("en", "no_such_message", nil)
	assert.False(t, ok)
}

func TestLanguageFor(t *testing.T) {
	l, err := NewLocalizer(&config.I18nConfig{DefaultLanguage: "en"})
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "en", l.LanguageFor(r))

	r.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	assert.Equal(t, "zh", l.LanguageFor(r))

	r.Header.Set("Accept-Language", "de-DE")
	assert.Equal(t, "en", l.LanguageFor(r))
}
