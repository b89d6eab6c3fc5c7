// Package render prepares assistant replies for display: it separates the
// model's <think> block from the answer, lists fenced code blocks for the
// copy button and converts markdown to HTML.
package render

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	gmtext "github.com/yuin/goldmark/text"
)

var (
	thinkRe = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
)

type CodeBlock struct {
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
}

// Rendered is the display form of one message text.
type Rendered struct {
	Thinking    string      `json:"thinking,omitempty"`
	HasThinking bool        `json:"hasThinking"`
	HTML        string      `json:"html"`
	CodeBlocks  []CodeBlock `json:"codeBlocks,omitempty"`
}

// SplitThinking extracts the first <think>...</think> block. Only the first
// block is removed; anything after it stays in the answer.
func SplitThinking(text string) (thinking, rest string, ok bool) {
	loc := thinkRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", text, false
	}
	thinking = strings.TrimSpace(text[loc[2]:loc[3]])
	rest = strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	return thinking, rest, true
}

// CodeBlocks lists fenced code blocks in document order, as goldmark parses
// them for the rendered HTML. An unclosed fence runs to the end of the text.
func CodeBlocks(text string) []CodeBlock {
	src := []byte(normalizeNewlines(text))
	doc := md.Parser().Parse(gmtext.NewReader(src))

	var blocks []CodeBlock
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		fence, ok := n.(*ast.FencedCodeBlock)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		var code bytes.Buffer
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			code.Write(seg.Value(src))
		}
		blocks = append(blocks, CodeBlock{
			Language: string(fence.Language(src)),
			Code:     strings.TrimSuffix(code.String(), "\n"),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

func normalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// Markdown renders GFM to HTML. Raw HTML in the source is omitted.
func Markdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(normalizeNewlines(text)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func Message(text string) (Rendered, error) {
	thinking, rest, ok := SplitThinking(text)
	out, err := Markdown(rest)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{
		Thinking:    thinking,
		HasThinking: ok,
		HTML:        out,
		CodeBlocks:  CodeBlocks(rest),
	}, nil
}
