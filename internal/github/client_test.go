package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	cases := []struct {
		in          string
		owner, repo string
	}{
		{"https://github.com/golang/go", "golang", "go"},
		{"https://github.com/golang/go.git", "golang", "go"},
		{"https://github.com/golang/go/tree/master/src", "golang", "go"},
		{"  https://github.com/Owner/Repo  ", "Owner", "Repo"},
		{"https://www.github.com/golang/go", "golang", "go"},
	}
	for _, tc := range cases {
		owner, repo, err := ParseRepoURL(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.owner, owner, tc.in)
		assert.Equal(t, tc.repo, repo, tc.in)
	}

	for _, bad := range []string{
		"",
		"https://gitlab.com/owner/repo",
		"https://github.com/",
		"https://github.com/onlyowner",
		"not a url at all",
	} {
		_, _, err := ParseRepoURL(bad)
		assert.Error(t, err, bad)
	}
}
