package gateway

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/goliatone/go-ledgerbridge/core"
)

const (
	nextStepSelectTenant = "The agent will now ask you to select one of your %s Organizations (Tenants)."
	nextStepRerun        = "Your token has been successfully saved. Please re-run your original request."
	nextStepRetry        = "Please try the authentication link again."
	unknownCallbackError = "An unknown error occurred during the connection process."
)

var connectPage = template.Must(template.New("connect").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Connect {{.Platform}}</title></head>
<body>
<h1>Connect {{.Platform}}</h1>
<p>Authorization URL generated for user: <strong>{{.UserID}}</strong></p>
<p>Click <a href="{{.AuthURL}}">here to authorize</a>.</p>
<p>Make sure this server is reachable at the <code>{{.Platform}}_REDIRECT_URI</code> you configured.</p>
</body>
</html>
`))

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; text-align: center;">
<table border="0" cellpadding="0" cellspacing="0" width="100%">
<tr><td align="center" style="padding: 40px 20px;">
<table border="0" cellpadding="0" cellspacing="0" width="450" style="background-color: #ffffff; border-radius: 8px;">
<tr><td align="center" style="padding: 24px;">
<h1 style="color: {{if .IsError}}#dc3545{{else}}#1e90ff{{end}}; margin: 0; font-size: 24px;">{{.Title}}</h1>
</td></tr>
<tr><td style="padding: 0 32px 32px;">
<p style="color: #555555; line-height: 1.6; font-size: 16px;">
{{if .IsError}}<strong>Error Details:</strong> {{.ErrorMessage}}{{else}}Your <strong>{{.Platform}}</strong> account is now linked to user <strong>{{.UserID}}</strong>.{{end}}
</p>
<div style="margin: 20px 0;">
<p style="color: #333333; font-size: 18px; font-weight: bold;">Next Step:</p>
<p style="color: #555555; line-height: 1.6;">{{.NextStep}}</p>
</div>
<p style="color: #aaaaaa; font-size: 14px; margin-top: 40px;">You may now close this window and return to your agent conversation.</p>
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>
`))

type connectView struct {
	Platform string
	UserID   string
	AuthURL  template.URL
}

type callbackView struct {
	Title        string
	Platform     string
	UserID       string
	NextStep     string
	IsError      bool
	ErrorMessage string
}

func newCallbackView(platform core.Platform, userID string, result core.ExchangeResult, err error) callbackView {
	name := platform.DisplayName()
	if err != nil {
		message := errorMessage(err)
		if message == "" {
			message = unknownCallbackError
		}
		return callbackView{
			Title:        name + " Connection Failed",
			Platform:     name,
			UserID:       userID,
			NextStep:     nextStepRetry,
			IsError:      true,
			ErrorMessage: message,
		}
	}
	next := nextStepRerun
	if result.RequiresOrgSelection {
		next = fmt.Sprintf(nextStepSelectTenant, name)
	}
	return callbackView{
		Title:    name + " Connected Successfully",
		Platform: name,
		UserID:   userID,
		NextStep: next,
	}
}

func renderConnect(w io.Writer, view connectView) error {
	return connectPage.Execute(w, view)
}

func renderCallback(w io.Writer, view callbackView) error {
	return callbackPage.Execute(w, view)
}

// safeURL admits only http(s) redirects into the page.
func safeURL(raw string) template.URL {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return template.URL(raw)
	}
	return template.URL("#")
}
