package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-ledgerbridge/core"
)

const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32001
)

const (
	MessageMethodNotFound = "Method not found"
	MessageInternal       = "Internal error: see data for details"
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  Params          `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// RemediationData is attached to errors the caller can recover from.
type RemediationData struct {
	Kind     string `json:"kind"`
	Platform string `json:"platform,omitempty"`
}

// Params is the decoded params object of a request.
type Params map[string]any

func (p Params) Get(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

// Platform parses the platform case-insensitively. Unknown values come
// back as-is so message validation reports them.
func (p Params) Platform() core.Platform {
	return core.Platform(strings.ToUpper(p.Get("platform")))
}

func (p Params) Amount(key string) float64 {
	return core.ParseAmount(p[key])
}

func (p Params) Tags(key string) []core.EmailTag {
	raw, ok := p[key].([]any)
	if !ok {
		return nil
	}
	tags := make([]core.EmailTag, 0, len(raw))
	for _, entry := range raw {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		tag := Params(item)
		if name := tag.Get("name"); name != "" {
			tags = append(tags, core.EmailTag{Name: name, Value: tag.Get("value")})
		}
	}
	return tags
}

func (p Params) ContactType(key string) core.ContactType {
	return core.ContactType(strings.ToUpper(p.Get(key)))
}
