package devkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/goliatone/go-ledgerbridge/core"
)

type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// JSONScript scripts a response whose body is payload encoded as JSON.
func JSONScript(status int, payload any) TransportScript {
	body, err := json.Marshal(payload)
	if err != nil {
		return TransportScript{Err: fmt.Errorf("devkit: encode script payload: %w", err)}
	}
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}}
}

func ErrorScript(err error) TransportScript {
	return TransportScript{Err: err}
}

type route struct {
	method  string
	path    string
	scripts []TransportScript
	hits    int
}

// FakeTransportAdapter replays scripted responses and records requests.
// Routed scripts match on method and URL path suffix, so concurrent
// callers stay deterministic. Unrouted calls consume the ordered scripts.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	kind     string
	scripts  []TransportScript
	routes   []*route
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:    strings.TrimSpace(strings.ToLower(kind)),
		scripts: append([]TransportScript(nil), scripts...),
	}
}

// Route registers scripts for method+path. Calls past the last script
// repeat it.
func (a *FakeTransportAdapter) Route(method string, path string, scripts ...TransportScript) *FakeTransportAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes = append(a.routes, &route{
		method:  strings.ToUpper(strings.TrimSpace(method)),
		path:    strings.TrimSpace(path),
		scripts: append([]TransportScript(nil), scripts...),
	})
	return a
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	if matched := a.match(req); matched != nil {
		return replay(matched.scripts, matched.hits-1, a.kind)
	}
	if len(a.routes) > 0 && len(a.scripts) == 0 {
		return core.TransportResponse{
			StatusCode: http.StatusNotFound,
			Headers:    map[string]string{},
			Body:       []byte(`{"message":"devkit: no scripted route"}`),
		}, nil
	}
	return replay(a.scripts, a.unroutedCalls()-1, a.kind)
}

func (a *FakeTransportAdapter) match(req core.TransportRequest) *route {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := requestPath(req.URL)
	for _, candidate := range a.routes {
		if candidate.method != "" && candidate.method != method {
			continue
		}
		if strings.HasSuffix(path, candidate.path) {
			candidate.hits++
			return candidate
		}
	}
	return nil
}

func (a *FakeTransportAdapter) unroutedCalls() int {
	routed := 0
	for _, item := range a.routes {
		routed += item.hits
	}
	return len(a.requests) - routed
}

func replay(scripts []TransportScript, index int, kind string) (core.TransportResponse, error) {
	if len(scripts) == 0 {
		return core.TransportResponse{
			StatusCode: http.StatusOK,
			Headers:    map[string]string{},
			Metadata:   map[string]any{"kind": kind},
		}, nil
	}
	if index >= len(scripts) {
		index = len(scripts) - 1
	}
	if index < 0 {
		index = 0
	}
	script := scripts[index]
	return cloneTransportResponse(script.Response), script.Err
}

func requestPath(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return parsed.Path
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

// RequestsTo returns the captured requests whose path ends with path.
func (a *FakeTransportAdapter) RequestsTo(method string, path string) []core.TransportRequest {
	method = strings.ToUpper(strings.TrimSpace(method))
	out := []core.TransportRequest{}
	for _, item := range a.Requests() {
		itemMethod := strings.ToUpper(strings.TrimSpace(item.Method))
		if itemMethod == "" {
			itemMethod = http.MethodGet
		}
		if method != "" && itemMethod != method {
			continue
		}
		if strings.HasSuffix(requestPath(item.URL), path) {
			out = append(out, item)
		}
	}
	return out
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Metadata:             map[string]any{},
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
		Idempotency:          in.Idempotency,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
