package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const shellTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>{{.Brand}}</title>
</head>
<body style="margin:0; padding:0; background-color:#FFFFFF; font-family:-apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; color:#000000;">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0">
    <tr>
      <td align="center">
        <table role="presentation" width="600" cellpadding="0" cellspacing="0" style="max-width:600px; width:100%;">
          <tr>
            <td style="padding:40px 32px 24px 32px; border-bottom:1px solid #000000;">
              <span style="font-size:28px; font-weight:700; letter-spacing:6px;">{{upper .Brand}}</span>
            </td>
          </tr>
          <tr>
            <td style="padding:32px;">{{template "body" .}}</td>
          </tr>
          <tr>
            <td style="padding:24px 32px 40px 32px; border-top:1px solid #E0E0E0; font-size:12px; color:#666666; line-height:1.6;">
              {{if .SiteURL}}<a href="{{.SiteURL}}" style="color:#000000; text-decoration:none; font-weight:600;">{{.SiteURL}}</a><br />{{end}}
              Creative technical consultancy
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`

const inquiryBody = `{{define "body"}}
<p style="font-size:16px; line-height:1.6; margin:0 0 24px 0;">New project inquiry received.</p>
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="margin:0 0 24px 0; border:1px solid #E0E0E0;">
{{range .Rows}}  <tr>
    <td style="padding:8px 12px; font-size:12px; font-weight:600; text-transform:uppercase; letter-spacing:1px; color:#666666; width:100px; border-bottom:1px solid #E0E0E0;">{{.Label}}</td>
    <td style="padding:8px 12px; font-size:14px; line-height:1.5; border-bottom:1px solid #E0E0E0;">{{.Value}}</td>
  </tr>
{{end}}</table>
<p style="font-size:12px; font-weight:600; text-transform:uppercase; letter-spacing:1px; color:#666666; margin:0 0 8px 0;">Message</p>
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
  <tr>
    <td style="padding:16px; font-size:14px; line-height:1.6; background-color:#F5F5F5;">{{range $i, $line := .MessageLines}}{{if $i}}<br />{{end}}{{$line}}{{end}}</td>
  </tr>
</table>
{{end}}`

const autoReplyBody = `{{define "body"}}
<p style="font-size:16px; line-height:1.6; margin:0 0 16px 0;">Hi {{.Name}},</p>
<p style="font-size:16px; line-height:1.6; margin:0 0 16px 0;">Thanks for reaching out. We received your inquiry and will review it shortly.</p>
<p style="font-size:16px; line-height:1.6; margin:0 0 24px 0;">You can expect a response within 1 &ndash; 2 business days. If your project is time-sensitive, feel free to reply to this email directly.</p>
<p style="font-size:14px; line-height:1.5; margin:0; color:#666666;">&mdash; {{.Brand}}</p>
{{end}}`

var funcs = template.FuncMap{"upper": strings.ToUpper}

var (
	inquiryTemplate   = template.Must(template.Must(template.New("shell").Funcs(funcs).Parse(shellTemplate)).Parse(inquiryBody))
	autoReplyTemplate = template.Must(template.Must(template.New("shell").Funcs(funcs).Parse(shellTemplate)).Parse(autoReplyBody))
)

type detailRow struct {
	Label string
	Value string
}

type inquiryView struct {
	Brand        string
	SiteURL      string
	Rows         []detailRow
	MessageLines []string
}

type autoReplyView struct {
	Brand   string
	SiteURL string
	Name    string
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
