package service

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pulse-analytics/pulse/internal/markdown"
)

//go:embed emails/*.md
var emailTemplatesFS embed.FS

const (
	verifyEmailTemplate   = "verify_email.md"
	resetPasswordTemplate = "reset_password.md"
)

type emailData struct {
	AppName string
	Name    string
	Link    string
	Expiry  string
}

type renderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

// emailRenderer turns Markdown templates with a front matter subject into
// HTML and plain text bodies.
type emailRenderer struct {
	parser    *markdown.Parser
	templates *template.Template
}

func newEmailRenderer() (*emailRenderer, error) {
	templates, err := template.ParseFS(emailTemplatesFS, "emails/*.md")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	return &emailRenderer{
		parser:    markdown.NewParser(),
		templates: templates,
	}, nil
}

func (r *emailRenderer) render(name string, data emailData) (renderedEmail, error) {
	text, err := r.execute(name, data)
	if err != nil {
		return renderedEmail{}, err
	}

	// The name is user input. Escaped, it renders as literal text in HTML.
	mdData := data
	mdData.Name = escapeMarkdown(data.Name)
	source, err := r.execute(name, mdData)
	if err != nil {
		return renderedEmail{}, err
	}

	html, meta, err := r.parser.ParseWithFrontmatter(source)
	if err != nil {
		return renderedEmail{}, fmt.Errorf("render email template %s: %w", name, err)
	}

	subject, _ := meta["subject"].(string)
	if subject == "" {
		return renderedEmail{}, fmt.Errorf("email template %s has no subject", name)
	}

	return renderedEmail{
		Subject: subject,
		HTML:    string(html),
		Text:    string(markdown.StripFrontmatter(text)),
	}, nil
}

func (r *emailRenderer) execute(name string, data emailData) ([]byte, error) {
	data.Name = singleLine(data.Name)

	var buf bytes.Buffer
	err := r.templates.ExecuteTemplate(&buf, name, data)
	if err != nil {
		return nil, fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// escapeMarkdown backslash-escapes every ASCII punctuation character, so no
// link, emphasis, HTML or autolink syntax survives.
func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		if c < utf8.RuneSelf && (unicode.IsPunct(c) || unicode.IsSymbol(c)) {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// singleLine replaces control characters, newlines included, with spaces.
func singleLine(s string) string {
	return strings.Map(func(c rune) rune {
		if unicode.IsControl(c) {
			return ' '
		}
		return c
	}, s)
}

// humanizeDuration formats whole hours or minutes, e.g. "24 hours".
func humanizeDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
