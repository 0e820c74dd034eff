package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"strings"
	"text/template"
)

// Renderer renders message templates with strict missing-key semantics.
type Renderer struct{}

// RenderText executes a plain text template.
func (Renderer) RenderText(name, tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("notify: template text required")
	}
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("notify: parse %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("notify: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderHTML executes an HTML template; values are escaped for their context.
func (Renderer) RenderHTML(name, tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("notify: template text required")
	}
	t, err := htmltemplate.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("notify: parse %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("notify: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

const confirmationSubject = "Your booking {{.BookingID}} is confirmed"

const confirmationText = `Hello {{.CustomerName}},

Your booking has been confirmed with reference {{.BookingID}} (code {{.BookingCode}}).

Service: {{.ServiceName}}{{if .ServiceType}} ({{.ServiceType}}){{end}}
Date: {{.BookingDate}}
Start: {{.StartTime}}
End: {{.EndTime}}
Therapist: {{.Staff}}
Total: {{.Total}}

Please arrive on time so we can give you the best experience.
{{if .HistoryURL}}
View your bookings: {{.HistoryURL}}
{{end}}
Thank you for choosing {{.SpaName}}.
`

const confirmationHTML = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto; padding: 20px; border: 1px solid #ddd; border-radius: 8px;">
<h2 style="color: #4CAF50; text-align: center;">Booking Confirmed</h2>
<p>Hello <strong>{{.CustomerName}}</strong>,</p>
<p>Your booking has been confirmed with reference <strong style="color: #FF5722;">{{.BookingID}}</strong>.</p>
<ul style="list-style: none; padding: 0;">
  <li style="padding: 8px 0; border-bottom: 1px solid #eee;"><strong>Service:</strong> {{.ServiceName}}{{if .ServiceType}} ({{.ServiceType}}){{end}}</li>
  <li style="padding: 8px 0; border-bottom: 1px solid #eee;"><strong>Date:</strong> {{.BookingDate}}</li>
  <li style="padding: 8px 0; border-bottom: 1px solid #eee;"><strong>Start:</strong> {{.StartTime}}</li>
  <li style="padding: 8px 0; border-bottom: 1px solid #eee;"><strong>End:</strong> {{.EndTime}}</li>
  <li style="padding: 8px 0; border-bottom: 1px solid #eee;"><strong>Therapist:</strong> {{.Staff}}</li>
  <li style="padding: 8px 0; font-size: 18px; font-weight: bold; color: #E91E63;"><strong>Total:</strong> {{.Total}}</li>
</ul>
<p style="color: #f44336; font-weight: bold; text-align: center;">Please arrive on time so we can give you the best experience.</p>
{{if .HistoryURL}}<p style="text-align: center;"><a href="{{.HistoryURL}}">View your bookings</a></p>{{end}}
<p style="color: #6b7280; font-size: 12px; text-align: center;">{{.SpaName}}</p>
</div>`

// formatAmount renders a minor-unit-free amount with dot grouping, e.g. "1.250.000 VNĐ".
func formatAmount(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == "VND" {
		currency = "VNĐ"
	}
	return sign + b.String() + " " + currency
}
