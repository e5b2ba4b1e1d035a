// Package markdown turns notebook cells into markdown text and reflows that
// text into styled terminal lines of a fixed width.
package markdown

import (
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"

	"nbview/internal/notebook"
)

const minFence = 3

// Format returns the markdown for a cell. Markdown and raw cells pass through
// unchanged; code cells are wrapped in a fence tagged with tag. The fence is
// longer than any backtick run in the source so the source cannot close it.
func Format(cell notebook.Cell, tag string) string {
	src := cell.Text()
	if cell.Type != notebook.Code {
		return src
	}
	fence := strings.Repeat("`", max(minFence, longestRun(src, '`')+1))

	var b strings.Builder
	b.Grow(len(src) + len(tag) + 2*len(fence) + 3)
	b.WriteString(fence)
	b.WriteString(tag)
	b.WriteByte('\n')
	b.WriteString(src)
	b.WriteByte('\n')
	b.WriteString(fence)
	b.WriteByte('\n')
	return b.String()
}

func longestRun(s string, c byte) int {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] != c {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return longest
}

// FenceTag maps a kernel language to a fence tag the highlighter knows.
// Languages without a lexer are returned lowercased.
func FenceTag(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		return ""
	}
	if lexers.Get(lang) != nil {
		return lang
	}
	// "python 3", "c++17" and friends
	if f := strings.Fields(lang); len(f) > 1 && lexers.Get(f[0]) != nil {
		return f[0]
	}
	if l := lexers.Match("file." + lang); l != nil && len(l.Config().Aliases) > 0 {
		return l.Config().Aliases[0]
	}
	return lang
}
