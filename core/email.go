package core

import (
	"context"
	"strings"
)

const DefaultEmailFrom = "onboarding@resend.dev"

type EmailTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SendEmailInput struct {
	To      string     `json:"to"`
	Subject string     `json:"subject"`
	HTML    string     `json:"html"`
	Tags    []EmailTag `json:"tags,omitempty"`
}

func (in SendEmailInput) Validate() error {
	switch {
	case strings.TrimSpace(in.To) == "":
		return validationError("to", "to, subject, and html body are required")
	case strings.TrimSpace(in.Subject) == "":
		return validationError("subject", "to, subject, and html body are required")
	case strings.TrimSpace(in.HTML) == "":
		return validationError("html", "to, subject, and html body are required")
	}
	return nil
}

type EmailResult struct {
	EmailID string `json:"email_id"`
}

// EmailSender delivers a rendered HTML email.
type EmailSender interface {
	SendEmail(ctx context.Context, in SendEmailInput) (EmailResult, error)
}
