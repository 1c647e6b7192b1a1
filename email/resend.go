package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-ledgerbridge/core"
	"github.com/goliatone/go-ledgerbridge/providers"
	"github.com/goliatone/go-ledgerbridge/transport"
	"github.com/google/uuid"
)

const DefaultEndpoint = "https://api.resend.com/emails"

type ResendConfig struct {
	APIKey    string
	From      string
	Endpoint  string
	Timeout   time.Duration
	Transport core.TransportAdapter
	Observer  *core.Observer
	// NewIdempotencyKey feeds the Idempotency-Key header of each send.
	NewIdempotencyKey func() string
}

// ResendSender delivers pre-rendered HTML through the Resend REST API.
type ResendSender struct {
	apiKey         string
	from           string
	endpoint       string
	timeout        time.Duration
	transport      core.TransportAdapter
	observer       *core.Observer
	idempotencyKey func() string
}

func NewResendSender(cfg ResendConfig) (*ResendSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("email: resend api key is required")
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.NewRESTAdapter(nil)
	}
	if cfg.Observer == nil {
		cfg.Observer = core.NewObserver(nil, nil)
	}
	if cfg.NewIdempotencyKey == nil {
		cfg.NewIdempotencyKey = uuid.NewString
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = core.DefaultEmailFrom
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &ResendSender{
		apiKey:         strings.TrimSpace(cfg.APIKey),
		from:           from,
		endpoint:       endpoint,
		timeout:        cfg.Timeout,
		transport:      cfg.Transport,
		observer:       cfg.Observer,
		idempotencyKey: cfg.NewIdempotencyKey,
	}, nil
}

type sendPayload struct {
	From    string          `json:"from"`
	To      []string        `json:"to"`
	Subject string          `json:"subject"`
	HTML    string          `json:"html"`
	Tags    []core.EmailTag `json:"tags,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func (s *ResendSender) SendEmail(ctx context.Context, in core.SendEmailInput) (result core.EmailResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"provider": "resend", "tags": len(in.Tags)}
	defer func() {
		if result.EmailID != "" {
			fields["email_id"] = result.EmailID
		}
		s.observer.Observe(ctx, startedAt, "send_email", err, fields)
	}()

	if err := in.Validate(); err != nil {
		return core.EmailResult{}, err
	}
	body, err := json.Marshal(sendPayload{
		From:    s.from,
		To:      []string{strings.TrimSpace(in.To)},
		Subject: in.Subject,
		HTML:    in.HTML,
		Tags:    in.Tags,
	})
	if err != nil {
		return core.EmailResult{}, sendError("encode payload", 0, err)
	}

	res, err := s.transport.Do(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    s.endpoint,
		Headers: map[string]string{
			"Authorization": "Bearer " + s.apiKey,
			"Content-Type":  "application/json",
		},
		Body:        body,
		Timeout:     s.timeout,
		Idempotency: s.idempotencyKey(),
		Metadata:    map[string]any{"operation": "send_email"},
	})
	if err != nil {
		return core.EmailResult{}, sendError(err.Error(), 0, err)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		detail := providers.ExtractErrorMessage(res.Body)
		if detail == "" {
			detail = http.StatusText(res.StatusCode)
		}
		return core.EmailResult{}, sendError(detail, res.StatusCode, nil)
	}

	var decoded sendResponse
	if err := json.Unmarshal(res.Body, &decoded); err != nil {
		return core.EmailResult{}, sendError("decode response", res.StatusCode, err)
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return core.EmailResult{}, sendError("response missing email id", res.StatusCode, nil)
	}
	return core.EmailResult{EmailID: decoded.ID}, nil
}

func sendError(detail string, status int, source error) error {
	message := "Failed to send email: " + detail
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryExternal, message)
	} else {
		err = goerrors.New(message, goerrors.CategoryExternal)
	}
	err = err.WithCode(http.StatusBadGateway).WithTextCode(core.LedgerErrorProviderFailure)
	if status > 0 {
		err.WithMetadata(map[string]any{"status": status})
	}
	return err
}

var _ core.EmailSender = (*ResendSender)(nil)
