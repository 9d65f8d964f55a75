package notification

import (
	"bytes"
	"html/template"
	"strings"
)

// UnsubscribePlaceholder marks where the unsubscribe footer goes in a rendered
// email body. It is replaced with a link for subscribable types and removed
// otherwise.
const UnsubscribePlaceholder = "{$unsubscribeLink}"

// EmailData feeds the notification email layout.
type EmailData struct {
	ContextName string
	Title       string
	Message     string
	ActionLabel string
	ActionURL   string
}

const emailLayout = `<!DOCTYPE html>
<html>
<head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
    <style>
        body { background-color: #f6f9fc; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif; font-size: 16px; line-height: 1.5; margin: 0; padding: 0; }
        table { border-collapse: separate; width: 100%; }
        .container { display: block; margin: 0 auto !important; max-width: 580px; padding: 10px; }
        .main { background: #ffffff; border-radius: 8px; width: 100%; border: 1px solid #e1e9ee; }
        .wrapper { box-sizing: border-box; padding: 20px; }
        .header { padding: 24px 0; text-align: center; color: #32325d; font-weight: 700; }
        .footer { clear: both; margin-top: 10px; text-align: center; color: #8898aa; font-size: 12px; }
        h1 { font-size: 22px; font-weight: 700; margin: 0 0 20px 0; color: #32325d; }
        p { margin: 0 0 16px 0; color: #525f7f; }
        .btn a { background-color: #5e6ad2; border-radius: 4px; color: #ffffff; display: inline-block; font-weight: bold; padding: 12px 25px; text-decoration: none; }
    </style>
</head>
<body>
    <table role="presentation" border="0" cellpadding="0" cellspacing="0">
        <tr>
            <td class="container">
                <div class="header">{{.ContextName}}</div>
                <table role="presentation" class="main">
                    <tr>
                        <td class="wrapper">
                            <h1>{{.Title}}</h1>
                            <p>{{.Message}}</p>
                            {{- if .ActionURL}}
                            <p class="btn"><a href="{{.ActionURL}}" target="_blank">{{.ActionLabel}}</a></p>
                            {{- end}}
                        </td>
                    </tr>
                </table>
                <div class="footer">` + UnsubscribePlaceholder + `</div>
            </td>
        </tr>
    </table>
</body>
</html>
`

var emailTemplate = template.Must(template.New("email").Parse(emailLayout))

// RenderEmail renders the layout. The result still carries the unsubscribe
// placeholder.
func RenderEmail(data EmailData) (string, error) {
	if data.ActionLabel == "" {
		data.ActionLabel = Text("notification.viewInContext", nil)
	}
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SpliceUnsubscribe replaces the placeholder with footer, or strips it when
// footer is empty.
func SpliceUnsubscribe(body, footer string) string {
	return strings.ReplaceAll(body, UnsubscribePlaceholder, footer)
}
