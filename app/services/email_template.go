package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// EmailTemplateData carries the values rendered into a communication email
type EmailTemplateData struct {
	OrganizationName string
	PrimaryColor     string
	Subject          string
	Content          string
	MessageType      string
	Priority         string
	RecipientName    string
}

// Paragraphs splits content on blank-line or newline boundaries
func (d EmailTemplateData) Paragraphs() []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(d.Content, "\r\n", "\n"), "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PriorityColor maps a priority to its badge color
func (d EmailTemplateData) PriorityColor() string {
	switch d.Priority {
	case "urgent":
		return "#DC2626"
	case "high":
		return "#EA580C"
	case "low":
		return "#6B7280"
	default:
		return "#2563EB"
	}
}

// ShowPriority hides the badge for routine messages
func (d EmailTemplateData) ShowPriority() bool {
	return d.Priority == "high" || d.Priority == "urgent"
}

const communicationEmailHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body style="margin:0;padding:0;background:#F3F4F6;font-family:Arial,Helvetica,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" style="max-width:600px;margin:0 auto;background:#FFFFFF;">
    <tr>
      <td style="background:{{.PrimaryColor}};color:#FFFFFF;padding:20px 24px;font-size:20px;font-weight:bold;">{{.OrganizationName}}</td>
    </tr>
    <tr>
      <td style="padding:24px;">
        <p style="margin:0 0 8px 0;font-size:12px;text-transform:uppercase;color:#6B7280;">{{.MessageType}}{{if .ShowPriority}} <span style="background:{{.PriorityColor}};color:#FFFFFF;padding:2px 8px;border-radius:4px;">{{.Priority}}</span>{{end}}</p>
        <h1 style="margin:0 0 16px 0;font-size:22px;color:#111827;">{{.Subject}}</h1>
        {{if .RecipientName}}<p style="margin:0 0 12px 0;color:#374151;">Hi {{.RecipientName}},</p>{{end}}
        {{range .Paragraphs}}<p style="margin:0 0 12px 0;line-height:1.5;color:#374151;">{{.}}</p>
        {{end}}
      </td>
    </tr>
    <tr>
      <td style="padding:16px 24px;border-top:1px solid #E5E7EB;font-size:12px;color:#9CA3AF;">Sent by {{.OrganizationName}} via Rally</td>
    </tr>
  </table>
</body>
</html>`

// EmailTemplate renders branded HTML bodies for communications
type EmailTemplate struct {
	tmpl *template.Template
}

func NewEmailTemplate() (*EmailTemplate, error) {
	tmpl, err := template.New("communication").Parse(communicationEmailHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}
	return &EmailTemplate{tmpl: tmpl}, nil
}

func (t *EmailTemplate) Render(data EmailTemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}
