package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-ledgerbridge/core"
)

const maxErrorDetailLength = 300

// APIClient issues signed JSON calls against a provider API on behalf of
// one client handle.
type APIClient struct {
	Platform  core.Platform
	Transport core.TransportAdapter
	Signer    core.Signer
	Timeout   time.Duration
}

type Call struct {
	Operation   string
	Method      string
	URL         string
	Query       map[string]string
	Body        any
	Idempotency string
}

// Do runs call and decodes a 2xx JSON body into out. A 401 means the
// provider no longer accepts the token and is reported as NeedsAuth; any
// other non-2xx becomes a ProviderError carrying the provider's message.
func (c APIClient) Do(ctx context.Context, handle core.ClientHandle, call Call, out any) error {
	if c.Transport == nil {
		return fmt.Errorf("providers: %s transport is not configured", c.Platform)
	}
	method := strings.ToUpper(strings.TrimSpace(call.Method))
	if method == "" {
		method = http.MethodGet
	}
	req := core.TransportRequest{
		Method:      method,
		URL:         call.URL,
		Headers:     map[string]string{},
		Query:       cloneQuery(call.Query),
		Timeout:     c.Timeout,
		Idempotency: call.Idempotency,
		Metadata: map[string]any{
			"platform":  string(c.Platform),
			"operation": call.Operation,
			"tenant_id": handle.TenantID,
		},
	}
	if call.Body != nil {
		body, err := json.Marshal(call.Body)
		if err != nil {
			return fmt.Errorf("providers: encode %s payload: %w", call.Operation, err)
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}
	if c.Signer != nil {
		if err := c.Signer.Sign(ctx, &req, handle); err != nil {
			return err
		}
	}

	res, err := c.Transport.Do(ctx, req)
	if err != nil {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) && rich.Category == goerrors.CategoryRateLimit {
			return err
		}
		return core.ProviderError(c.Platform, call.Operation, 0, "", err)
	}
	if res.StatusCode == http.StatusUnauthorized {
		return core.NeedsAuth(c.Platform, fmt.Sprintf("%s rejected the access token. Please re-authenticate.", c.Platform.DisplayName()))
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return core.ProviderError(c.Platform, call.Operation, res.StatusCode, ExtractErrorMessage(res.Body), nil)
	}
	if out == nil || len(strings.TrimSpace(string(res.Body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return core.ProviderError(c.Platform, call.Operation, res.StatusCode, "decode response", err)
	}
	return nil
}

// ExtractErrorMessage pulls a human readable message out of a provider
// error body, covering both Zoho ({"message"}) and Xero
// ({"Message"}, {"Detail"}, validation Elements) shapes.
func ExtractErrorMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return truncate(trimmed)
	}
	if message := validationMessage(decoded); message != "" {
		return message
	}
	for _, key := range []string{"message", "Message", "Detail", "detail", "error_description", "Title", "error"} {
		if value := readAnyString(decoded[key]); value != "" {
			return truncate(value)
		}
	}
	return truncate(trimmed)
}

func validationMessage(decoded map[string]any) string {
	elements, ok := decoded["Elements"].([]any)
	if !ok {
		return ""
	}
	for _, element := range elements {
		item, ok := element.(map[string]any)
		if !ok {
			continue
		}
		errs, ok := item["ValidationErrors"].([]any)
		if !ok {
			continue
		}
		for _, entry := range errs {
			if detail, ok := entry.(map[string]any); ok {
				if message := readAnyString(detail["Message"]); message != "" {
					return truncate(message)
				}
			}
		}
	}
	return ""
}

func truncate(value string) string {
	if len(value) <= maxErrorDetailLength {
		return value
	}
	return value[:maxErrorDetailLength] + "..."
}

func cloneQuery(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
