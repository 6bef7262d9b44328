package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

type Parser struct {
	md goldmark.Markdown
}

func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Linkify,
			extension.Typographer,
			&frontmatter.Extender{},
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithHardWraps(),
			goldmarkhtml.WithXHTML(),
		),
	)

	return &Parser{
		md: md,
	}
}

// ParseWithFrontmatter renders source to HTML and decodes its YAML front
// matter into meta. A document without front matter yields an empty map.
func (p *Parser) ParseWithFrontmatter(source []byte) (content []byte, meta map[string]any, err error) {
	context := parser.NewContext()
	var buf bytes.Buffer

	err = p.md.Convert(source, &buf, parser.WithContext(context))
	if err != nil {
		return nil, nil, err
	}

	data := frontmatter.Get(context)
	if data == nil {
		meta = make(map[string]any)
	} else {
		err = data.Decode(&meta)
		if err != nil {
			return nil, nil, err
		}
	}

	return buf.Bytes(), meta, nil
}

var delimiter = []byte("---")

// StripFrontmatter returns source without a leading "---" delimited block.
// The remaining Markdown doubles as the plain text form of a document.
func StripFrontmatter(source []byte) []byte {
	rest, ok := cutLine(source, delimiter)
	if !ok {
		return source
	}

	for len(rest) > 0 {
		line, next := splitLine(rest)
		if bytes.Equal(bytes.TrimRight(line, " \t\r"), delimiter) {
			return bytes.TrimLeft(next, "\r\n")
		}
		rest = next
	}

	return source
}

// cutLine removes the first line of b if it equals want.
func cutLine(b, want []byte) ([]byte, bool) {
	line, rest := splitLine(b)
	if !bytes.Equal(bytes.TrimRight(line, " \t\r"), want) {
		return b, false
	}
	return rest, true
}

func splitLine(b []byte) (line, rest []byte) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return b, nil
	}
	return b[:i], b[i+1:]
}
