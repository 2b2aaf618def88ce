package storage

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	cases := []struct {
		base, key, want string
	}{
		{"https://cdn.example.com", "teams/1/logo.png", "https://cdn.example.com/teams/1/logo.png"},
		{"https://cdn.example.com/", "/teams/1/logo.png", "https://cdn.example.com/teams/1/logo.png"},
		{"https://cdn.example.com/media", "tournaments/3/logo.webp", "https://cdn.example.com/media/tournaments/3/logo.webp"},
		{"https://cdn.example.com", "", ""},
	}
	for _, tc := range cases {
		base, err := url.Parse(tc.base)
		require.NoError(t, err)
		assert.Equal(t, tc.want, PublicURL(base, tc.key), tc.base+" + "+tc.key)
	}
	assert.Empty(t, PublicURL(nil, "a.png"))
}

func TestLogoKey(t *testing.T) {
	key, err := LogoKey(OwnerTeams, 12, "image/png")
	require.NoError(t, err)
	assert.Regexp(t, `^teams/12/logo_[0-9a-f-]{36}\.png$`, key)

	other, err := LogoKey(OwnerTeams, 12, "image/png")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	ext, err := ExtensionForContentType("image/svg+xml")
	require.NoError(t, err)
	assert.Equal(t, ".svg", ext)

	_, err = LogoKey(OwnerTournaments, 1, "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
}
