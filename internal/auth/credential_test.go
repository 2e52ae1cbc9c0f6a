package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unrepo/unrepo-api/internal/model"
)

func TestParseCapability(t *testing.T) {
	cases := map[string]model.Capability{
		"RESEARCH":  model.CapabilityResearch,
		"research":  model.CapabilityResearch,
		"CHATBOT":   model.CapabilityChat,
		"chat":      model.CapabilityChat,
		" chatbot ": model.CapabilityChat,
	}
	for in, want := range cases {
		got, err := ParseCapability(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "admin", "researcher"} {
		_, err := ParseCapability(in)
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
}

func TestValidateToken(t *testing.T) {
	ok := "unrepo_research_" + strings.Repeat("a", 64)
	assert.NoError(t, ValidateToken(ok, model.CapabilityResearch))

	// Capability mismatch fails structurally.
	assert.ErrorIs(t, ValidateToken(ok, model.CapabilityChat), ErrMalformed)

	for _, bad := range []string{
		"",
		"unrepo_research_",                           // empty suffix
		"research_" + strings.Repeat("a", 64),        // missing prefix
		"unrepo_RESEARCH_" + strings.Repeat("a", 64), // case matters on the wire
		"sk-" + strings.Repeat("a", 40),
	} {
		assert.ErrorIs(t, ValidateToken(bad, model.CapabilityResearch), ErrMalformed, bad)
	}
}

func TestNewTokenShape(t *testing.T) {
	tok, err := NewToken(model.CapabilityChat)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok, "unrepo_chatbot_"))
	assert.Len(t, tok, len("unrepo_chatbot_")+64)
	assert.NoError(t, ValidateToken(tok, model.CapabilityChat))

	other, err := NewToken(model.CapabilityChat)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestValidateAddress(t *testing.T) {
	addr := strings.Repeat("ab", 32)
	got, err := ValidateAddress("  " + strings.ToUpper(addr) + " ")
	require.NoError(t, err)
	assert.Equal(t, addr, got, "addresses normalize to lower case")

	for _, bad := range []string{
		"",
		strings.Repeat("a", 63),
		strings.Repeat("a", 65),
		strings.Repeat("g", 64), // not hex
	} {
		_, err := ValidateAddress(bad)
		assert.ErrorIs(t, err, ErrMalformed, bad)
	}
}
