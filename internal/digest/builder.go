// Package digest renders submission history into a mail-ready report.
package digest

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/ibeckermayer/postbot/internal/store"
)

// ErrEmpty is returned when there is nothing to report.
var ErrEmpty = errors.New("no submissions to report")

// Builder creates reports from submission rows.
type Builder struct {
	maxRows  int
	template *template.Template
}

// New creates a builder listing at most maxRows submissions; 0 means all.
func New(maxRows int) (*Builder, error) {
	tmpl, err := template.New("digest").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Builder{maxRows: maxRows, template: tmpl}, nil
}

// Digest is a rendered report ready for sending.
type Digest struct {
	Subject   string
	HTMLBody  string
	PlainBody string
	CreatedAt time.Time
}

type data struct {
	Title  string
	Date   string
	Rows   []row
	Posted int
	Failed int
}

type row struct {
	When      string
	Result    string
	OK        bool
	Text      int
	Files     string
	Scheduled string
}

// Build renders subs, newest first as given, under title.
func (b *Builder) Build(title string, subs []store.Submission, now time.Time) (*Digest, error) {
	if len(subs) == 0 {
		return nil, ErrEmpty
	}
	if b.maxRows > 0 && len(subs) > b.maxRows {
		subs = subs[:b.maxRows]
	}

	d := data{
		Title: title,
		Date:  now.Format("Monday, January 2 15:04"),
		Rows:  make([]row, len(subs)),
	}
	for i, s := range subs {
		r := row{
			When:      s.SubmittedAt.Format("Jan 2 15:04"),
			Result:    Result(s),
			OK:        s.OK,
			Text:      s.TextLength,
			Files:     fmt.Sprintf("%d/%d", s.Uploaded, s.Attachments),
			Scheduled: "-",
		}
		if !s.Scheduled.IsZero() {
			r.Scheduled = s.Scheduled.Format("Jan 2 15:04")
		}
		if s.OK {
			d.Posted++
		} else {
			d.Failed++
		}
		d.Rows[i] = r
	}

	var html bytes.Buffer
	if err := b.template.Execute(&html, d); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Digest{
		Subject:   subject(title, d),
		HTMLBody:  html.String(),
		PlainBody: plainText(d),
		CreatedAt: now,
	}, nil
}

// Result is the one-word outcome shown for a submission.
func Result(s store.Submission) string {
	switch {
	case s.OK && s.Debug:
		return "debug"
	case s.OK:
		return "posted"
	}
	return "failed"
}

func subject(title string, d data) string {
	if len(d.Rows) == 1 {
		return fmt.Sprintf("postbot: %s (%s)", title, d.Rows[0].Result)
	}
	return fmt.Sprintf("postbot: %s (%d ok, %d failed)", title, d.Posted, d.Failed)
}

func plainText(d data) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s\n%s\n\n", d.Title, d.Date)
	for _, r := range d.Rows {
		fmt.Fprintf(&buf, "%s  %-6s  text %d  files %s  scheduled %s\n", r.When, r.Result, r.Text, r.Files, r.Scheduled)
	}
	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #00aff0; margin-bottom: 5px; }
        .date { color: #666; margin-bottom: 20px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #eee; }
        .ok { color: #1a7f37; font-weight: bold; }
        .failed { color: #cf222e; font-weight: bold; }
        .footer { margin-top: 20px; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{.Date}}</div>
        <table>
            <tr><th>When</th><th>Result</th><th>Text</th><th>Files</th><th>Scheduled</th></tr>
            {{range .Rows}}
            <tr>
                <td>{{.When}}</td>
                <td class="{{if .OK}}ok{{else}}failed{{end}}">{{.Result}}</td>
                <td>{{.Text}}</td>
                <td>{{.Files}}</td>
                <td>{{.Scheduled}}</td>
            </tr>
            {{end}}
        </table>
        <div class="footer">{{.Posted}} ok · {{.Failed}} failed · sent by postbot</div>
    </div>
</body>
</html>`
