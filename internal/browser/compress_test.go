package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressShortTextUnchanged(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph."
	assert.Equal(t, text, Compress(text, 6000))
}

func TestCompressPreservesParagraphBoundaries(t *testing.T) {
	paras := []string{
		"Alpha paragraph with enough words to matter here.",
		"Beta paragraph with enough words to matter here too.",
		"Gamma paragraph that will not fit inside the budget.",
	}
	text := strings.Join(paras, "\n\n")

	out := Compress(text, 130)
	assert.LessOrEqual(t, len(out), 130)
	assert.True(t, strings.HasSuffix(out, "[Content truncated...]"))
	assert.Contains(t, out, paras[0])
	// No paragraph is cut mid-way; the one that would overflow is dropped.
	assert.NotContains(t, out, "Gamma")
}

func TestCompressOversizedSingleParagraph(t *testing.T) {
	text := strings.Repeat("x", 10000)
	out := Compress(text, 500)
	assert.LessOrEqual(t, len(out), 500)
	assert.True(t, strings.HasSuffix(out, "[Content truncated...]"))
}

func TestCompressTinyBound(t *testing.T) {
	long := strings.Repeat("word ", 100)

	// Bounds at or below the marker length still hold without the marker.
	out := Compress(long, 10)
	assert.Len(t, out, 10)

	out = Compress(long, len("\n\n[Content truncated...]"))
	assert.NotContains(t, out, "[Content truncated...]")

	// One past the marker length fits a marked one-byte cut.
	out = Compress(long, len("\n\n[Content truncated...]")+1)
	assert.LessOrEqual(t, len(out), len("\n\n[Content truncated...]")+1)
}

func TestCompressCollapsesWhitespace(t *testing.T) {
	out := Compress("a   b\t\tc\n\n\n\n\nd", 6000)
	assert.Equal(t, "a b c\n\nd", out)
}

func TestExtractFragments(t *testing.T) {
	html := `<html><body>
		<nav>skip this nav</nav>
		<h1>Main Headline</h1>
		<p>Opening paragraph text.</p>
		<blockquote><p>A quoted passage.</p></blockquote>
		<ul><li>first</li><li>second</li></ul>
		<script>var skip = true;</script>
	</body></html>`

	fragments, err := ExtractFragments(html)
	require.NoError(t, err)

	types := make(map[string][]string)
	for _, f := range fragments {
		types[f.Type] = append(types[f.Type], f.Text)
	}

	assert.Equal(t, []string{"Main Headline"}, types[FragmentHeadline])
	assert.Equal(t, []string{"Opening paragraph text."}, types[FragmentParagraph])
	require.Len(t, types[FragmentQuote], 1)
	assert.Contains(t, types[FragmentQuote][0], "A quoted passage.")
	assert.Equal(t, []string{"first; second"}, types[FragmentList])

	for _, f := range fragments {
		assert.NotContains(t, f.Text, "skip this nav")
		assert.NotContains(t, f.Text, "var skip")
	}
}
