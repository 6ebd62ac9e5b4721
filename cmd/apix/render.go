package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/blackcoderx/apix/pkg/auth"
	"github.com/blackcoderx/apix/pkg/storage"
)

// Minimal color palette
var (
	dimColor     = lipgloss.Color("#6c6c6c")
	accentColor  = lipgloss.Color("#7aa2f7")
	errorColor   = lipgloss.Color("#f7768e")
	successColor = lipgloss.Color("#9ece6a")
	warnColor    = lipgloss.Color("#e0af68")
)

var (
	dimStyle    = lipgloss.NewStyle().Foreground(dimColor)
	accentStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(errorColor)
	okStyle     = lipgloss.NewStyle().Foreground(successColor)

	statusStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
)

// statusColor maps a status code to its class color. Synthetic failures
// (status 0) and 5xx are errors.
func statusColor(code int) lipgloss.Color {
	switch {
	case code >= 200 && code < 300:
		return successColor
	case code >= 300 && code < 400:
		return accentColor
	case code >= 400 && code < 500:
		return warnColor
	default:
		return errorColor
	}
}

// statusLine renders "200 OK  123 ms  1.2 kB" for a response.
func statusLine(r storage.Response) string {
	text := r.StatusText
	if r.IsError() {
		text = "Error"
	}
	badge := statusStyle.Foreground(statusColor(r.StatusCode)).Render(strings.TrimSpace(fmt.Sprintf("%d %s", r.StatusCode, text)))
	if r.IsError() {
		return badge
	}
	meta := fmt.Sprintf("%d ms  %s", r.ResponseTime, humanize.Bytes(uint64(max(r.Size, 0))))
	return badge + " " + dimStyle.Render(meta)
}

// responseMarkdown renders the selected step of set: its position in a
// chain, headers, cookies and body.
func responseMarkdown(set storage.ResponseSet) string {
	r, ok := set.Current()
	if !ok {
		return "_No response_\n"
	}

	var b strings.Builder
	if set.Len() > 1 {
		fmt.Fprintf(&b, "## Step %d of %d\n\n", set.Selected+1, set.Len())
	}
	if r.IsError() {
		fmt.Fprintf(&b, "**Request failed:** %s\n", string(r.Body))
		return b.String()
	}

	writeFields(&b, "Headers", r.Headers)
	writeFields(&b, "Cookies", r.Cookies)

	b.WriteString("### Body\n\n")
	lang := "text"
	if r.Body.IsJSON() {
		lang = "json"
	}
	body := r.Body.Pretty()
	if body == "" {
		b.WriteString("_empty_\n")
		return b.String()
	}
	fmt.Fprintf(&b, "```%s\n%s\n```\n", lang, strings.TrimRight(body, "\n"))
	return b.String()
}

func writeFields(b *strings.Builder, title string, f storage.Fields) {
	if len(f) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n| Name | Value |\n|---|---|\n", title)
	for _, k := range f.Keys() {
		fmt.Fprintf(b, "| %s | %s |\n", cell(k), cell(f[k]))
	}
	b.WriteString("\n")
}

// requestMarkdown renders a draft with the rows its auth will add.
func requestMarkdown(req *storage.Request) string {
	var b strings.Builder
	name := req.Name
	if name == "" {
		name = req.ID
	}
	fmt.Fprintf(&b, "# %s\n\n`%s %s`\n\n", name, req.Method, req.URL)
	fmt.Fprintf(&b, "- **id:** %s\n- **environment:** %s\n- **auth:** %s\n\n", req.ID, req.EnvironmentID, req.AuthType())

	writeRows(&b, "Headers", req.Headers)
	writeRows(&b, "Params", req.Params)

	applied := auth.Preview(req)
	if len(applied.Headers)+len(applied.Params) > 0 {
		b.WriteString("### Added by auth\n\n| Where | Name | Value |\n|---|---|---|\n")
		for _, h := range applied.Headers {
			fmt.Fprintf(&b, "| header | %s | %s |\n", cell(h.Name), cell(h.Value))
		}
		for _, p := range applied.Params {
			fmt.Fprintf(&b, "| query | %s | %s |\n", cell(p.Name), cell(p.Value))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "### Body (%s)\n\n", req.BodyType)
	switch body := req.Body.(type) {
	case storage.TextBody:
		if body == "" {
			b.WriteString("_empty_\n")
		} else {
			lang := strings.ToLower(string(req.RawType))
			if req.BodyType != storage.BodyRaw {
				lang = "text"
			}
			fmt.Fprintf(&b, "```%s\n%s\n```\n", lang, body)
		}
	case storage.FormBody:
		b.WriteString("| ID | Key | Value | Type |\n|---|---|---|---|\n")
		for _, f := range body {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", f.ID, cell(f.Key), cell(f.Value), f.Type)
		}
	case storage.FileBody:
		fmt.Fprintf(&b, "file: `%s`\n", body.Name)
	default:
		b.WriteString("_none_\n")
	}
	return b.String()
}

func writeRows(b *strings.Builder, title string, rows []storage.KeyValue) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n| ID | On | Name | Value |\n|---|---|---|---|\n", title)
	for _, r := range rows {
		on := "x"
		if !r.Enabled {
			on = " "
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", r.ID, on, cell(r.Name), cell(r.Value))
	}
	b.WriteString("\n")
}

// cell escapes text for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// renderMarkdown prints md through glamour, or raw when rendering fails.
func renderMarkdown(w io.Writer, md string) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Fprint(w, md) // Fallback to raw output
		return
	}

	out, err := renderer.Render(md)
	if err != nil {
		fmt.Fprint(w, md)
		return
	}
	fmt.Fprint(w, out)
}
