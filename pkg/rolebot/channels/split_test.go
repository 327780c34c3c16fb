package channels

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessage_Short(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"hello"}, SplitMessage("hello", 100))
}

func TestSplitMessage_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, SplitMessage("", 100))
}

func TestSplitMessage_DefaultLimit(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", MaxMessageDiscord)
	for _, maxLen := range []int{0, -5} {
		assert.Equal(t, []string{text}, SplitMessage(text, maxLen))
	}
	assert.Len(t, SplitMessage(text+"b", 0), 2)
}

func TestSplitMessage_Boundaries(t *testing.T) {
	t.Parallel()

	a := strings.Repeat("a", 60)
	b := strings.Repeat("b", 60)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"paragraph", a + "\n\n" + b, []string{a, b}},
		{"line", a + "\n" + b, []string{a, b}},
		{"sentence", a + ". " + b, []string{a + ".", b}},
		{"word", a + " " + b, []string{a, b}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SplitMessage(tt.text, 100))
		})
	}
}

func TestSplitMessage_HardSplit(t *testing.T) {
	t.Parallel()

	chunks := SplitMessage(strings.Repeat("x", 250), 100)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 50)
}

func TestSplitMessage_KeepsCodeBlocksWhole(t *testing.T) {
	t.Parallel()

	block := "```go\n" + strings.Repeat("x := 1\n", 15) + "```"
	text := "Intro paragraph.\n\n" + block + "\n\n" + strings.Repeat("word ", 30)

	chunks := SplitMessage(text, 60)
	require.NotEmpty(t, chunks)

	var found bool
	for _, c := range chunks {
		if strings.Contains(c, block) {
			found = true
			continue
		}
		assert.NotContains(t, c, "```")
		assert.LessOrEqual(t, len(c), 60)
	}
	assert.True(t, found, "code block must survive intact")
}

func TestSplitMessage_ChunksWithinLimit(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("The quick brown fox jumps. ", 200)
	chunks := SplitMessage(text, MaxMessageDiscord)
	require.Greater(t, len(chunks), 1)

	var words int
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), MaxMessageDiscord)
		assert.NotEmpty(t, c)
		words += len(strings.Fields(c))
	}
	assert.Equal(t, len(strings.Fields(text)), words)
}
