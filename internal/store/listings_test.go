package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixTSQuery(t *testing.T) {
	assert.Equal(t, "سياره:* & تويوتا:*", prefixTSQuery([]string{"سياره", "تويوتا"}))
	assert.Equal(t, "car:*", prefixTSQuery([]string{"car"}))

	// tsquery operator characters are stripped, not escaped.
	assert.Equal(t, "ab:*", prefixTSQuery([]string{"a&b"}))
	assert.Equal(t, "", prefixTSQuery([]string{"&|!"}))
	assert.Equal(t, "", prefixTSQuery(nil))
}

func TestTaMarbutaVariants(t *testing.T) {
	// Raw catalog keyword with ta marbuta gains the ha-folded form.
	assert.Equal(t, []string{"سيارة", "سياره"}, taMarbutaVariants("سيارة"))

	// Normalized keyword ending in ha gains the ta-marbuta form back.
	assert.Equal(t, []string{"سياره", "سيارة"}, taMarbutaVariants("سياره"))

	// Neither letter: just the keyword itself.
	assert.Equal(t, []string{"تويوتا"}, taMarbutaVariants("تويوتا"))
}

func TestTSConfig(t *testing.T) {
	assert.Equal(t, "arabic", tsConfig("ar"))
	assert.Equal(t, "english", tsConfig("en"))
	assert.Equal(t, "english", tsConfig(""))
}
