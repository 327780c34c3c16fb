// split.go breaks long replies into chunks that fit a platform's message
// length limit without cutting through ``` code blocks.
package channels

import (
	"fmt"
	"strings"
)

const (
	// MaxMessageDiscord is Discord's message length limit.
	MaxMessageDiscord = 2000

	// MaxMessageDefault is used when no limit is given.
	MaxMessageDefault = MaxMessageDiscord
)

// boundaries are tried in order; the first one found in the back half of a
// window wins.
var boundaries = []string{"\n\n", "\n", ". ", " "}

type codeBlock struct {
	placeholder string
	content     string
}

// SplitMessage splits text into chunks of at most maxLen bytes, preferring
// paragraph, line, sentence and word boundaries. A code block is never split;
// one longer than maxLen becomes its own oversized chunk.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = MaxMessageDefault
	}
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	remain, blocks := protectCodeBlocks(text)

	var chunks []string
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			chunks = append(chunks, restoreCodeBlocks(s, blocks))
		}
	}

	for len(remain) > maxLen {
		cut := splitPoint(remain[:maxLen], maxLen)
		cut = avoidPlaceholder(remain, cut, maxLen, blocks)
		emit(remain[:cut])
		remain = strings.TrimLeft(remain[cut:], " \n")
	}
	emit(remain)
	return chunks
}

// splitPoint returns where to end the chunk within window, or len(window)
// for a hard cut.
func splitPoint(window string, maxLen int) int {
	for _, sep := range boundaries {
		if idx := strings.LastIndex(window, sep); idx > maxLen/2 {
			return idx + len(sep)
		}
	}
	return len(window)
}

// avoidPlaceholder moves cut so it does not land inside a code block
// placeholder: back to the placeholder start if that leaves a non-empty
// chunk, otherwise forward past its end.
func avoidPlaceholder(s string, cut, maxLen int, blocks []codeBlock) int {
	for _, b := range blocks {
		idx := strings.Index(s, b.placeholder)
		if idx < 0 || idx > maxLen {
			continue
		}
		end := idx + len(b.placeholder)
		if cut > idx && cut < end {
			if idx > 0 {
				return idx
			}
			return end
		}
	}
	return cut
}

// protectCodeBlocks swaps each ``` fenced block (an unclosed fence runs to
// the end) for a short placeholder.
func protectCodeBlocks(text string) (string, []codeBlock) {
	var (
		blocks []codeBlock
		out    strings.Builder
	)
	for {
		start := strings.Index(text, "```")
		if start < 0 {
			out.WriteString(text)
			break
		}
		end := len(text)
		if closeIdx := strings.Index(text[start+3:], "```"); closeIdx >= 0 {
			end = start + 3 + closeIdx + 3
		}

		ph := fmt.Sprintf("\x00code%d\x00", len(blocks))
		blocks = append(blocks, codeBlock{placeholder: ph, content: text[start:end]})
		out.WriteString(text[:start])
		out.WriteString(ph)
		text = text[end:]
	}
	return out.String(), blocks
}

func restoreCodeBlocks(s string, blocks []codeBlock) string {
	for _, b := range blocks {
		s = strings.ReplaceAll(s, b.placeholder, b.content)
	}
	return s
}
