package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskToken(t *testing.T) {
	tok := "unrepo_research_" + strings.Repeat("a", 64)
	masked := maskToken(tok)
	assert.True(t, strings.HasPrefix(masked, "unrepo_research_"))
	assert.True(t, strings.HasSuffix(masked, "aaaa"))
	assert.NotContains(t, masked, strings.Repeat("a", 10))

	assert.Equal(t, "****", maskToken("short"))
}

func TestPickImportantFiles(t *testing.T) {
	tree := []string{
		"README.md",
		"go.mod",
		"cmd/server/main.go",
		"internal/deep/nested/file.go",
		"handler.go",
		"docs/image.png",
		"Makefile",
	}
	picked := pickImportantFiles(tree)

	assert.Contains(t, picked, "README.md")
	assert.Contains(t, picked, "go.mod")
	assert.Contains(t, picked, "Makefile")
	assert.Contains(t, picked, "handler.go")
	assert.NotContains(t, picked, "docs/image.png")
	assert.NotContains(t, picked, "internal/deep/nested/file.go")
	assert.LessOrEqual(t, len(picked), 12)
}

func TestPickImportantFilesCaps(t *testing.T) {
	var tree []string
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n"} {
		tree = append(tree, n+".go")
	}
	assert.Len(t, pickImportantFiles(tree), 12)
}
