package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactSensitiveMap masks token, secret and key material before fields
// reach a log line. Identifiers such as user_id or org_id pass through.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(fields)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	case TokenRecord:
		return redactTokenRecord(typed)
	case *TokenRecord:
		if typed == nil {
			return typed
		}
		return redactTokenRecord(*typed)
	default:
		return value
	}
}

func redactTokenRecord(record TokenRecord) map[string]any {
	return map[string]any{
		"access_token":  RedactedValue,
		"refresh_token": RedactedValue,
		"expires_at":    record.ExpiresAt,
		"api_domain":    record.APIDomain,
		"org_id":        record.OrgID,
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isIdentifierKey(key) {
		return false
	}
	for _, token := range []string{
		"password",
		"secret",
		"token",
		"authorization",
		"api_key",
		"apikey",
		"encrypt_key",
		"code",
		"credential",
	} {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func isIdentifierKey(key string) bool {
	switch key {
	case "user_id",
		"platform",
		"org_id",
		"tenant_id",
		"tenant_count",
		"contact_id",
		"invoice_id",
		"email_id",
		"method",
		"request_id",
		"idempotency_key",
		"status_code",
		"error_code":
		return true
	default:
		return false
	}
}
