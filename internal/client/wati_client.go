package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
)

const (
	OpLookup = "lookup"
	OpUpsert = "upsert"
	OpSend   = "send"

	defaultTimeout = 15 * time.Second
)

// Observer receives one call per HTTP attempt. status is 0 for network failures.
type Observer interface {
	ProviderRequest(op string, status int)
}

type Options struct {
	BaseURLs   []string
	Token      string
	Timeout    time.Duration
	Retry      RetryConfig
	HTTPClient *http.Client
	Observer   Observer
}

// WatiClient talks to the WATI REST API. Every call walks BaseURLs in order and
// runs the full retry policy against each endpoint before moving on.
type WatiClient struct {
	endpoints []string
	token     string
	client    *http.Client
	retry     RetryConfig
	observer  Observer
}

func NewWatiClient(opts Options) (*WatiClient, error) {
	var endpoints []string
	for _, u := range opts.BaseURLs {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u != "" {
			endpoints = append(endpoints, u)
		}
	}
	if len(endpoints) == 0 {
		return nil, errors.New("at least one base url is required")
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("api token is required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &WatiClient{
		endpoints: endpoints,
		token:     strings.TrimPrefix(strings.TrimSpace(opts.Token), "Bearer "),
		client:    hc,
		retry:     opts.Retry.normalized(),
		observer:  opts.Observer,
	}, nil
}

type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type UpsertResult struct {
	Accepted   bool
	StatusCode int
	Body       string
}

type SendResult struct {
	Success    bool
	StatusCode int
	Body       string
}

type upsertRequest struct {
	Phone          string `json:"phone"`
	Name           string `json:"name"`
	AllowBroadcast bool   `json:"allowBroadcast"`
}

type sendRequest struct {
	Phone         string      `json:"phone"`
	TemplateName  string      `json:"template_name"`
	BroadcastName string      `json:"broadcast_name"`
	Parameters    []Parameter `json:"parameters"`
}

type response struct {
	status int
	body   []byte
}

// LookupContact reports whether the provider knows phone. A 404 or an empty
// contact_list means not found.
func (c *WatiClient) LookupContact(ctx context.Context, phone string) (bool, error) {
	q := url.Values{"phone": {phone}}

	resp, err := c.do(ctx, OpLookup, http.MethodGet, "/api/v1/getContacts?"+q.Encode(), nil, func(status int) bool {
		return status == http.StatusOK || status == http.StatusNotFound
	})
	if err != nil {
		return false, err
	}
	if resp.status == http.StatusNotFound {
		return false, nil
	}

	list := gjson.GetBytes(resp.body, "contact_list")
	if !list.Exists() {
		return true, nil
	}
	return len(list.Array()) > 0, nil
}

// UpsertContact creates or updates a contact. 409 (already exists) counts as accepted.
func (c *WatiClient) UpsertContact(ctx context.Context, phone, name string, allowBroadcast bool) (UpsertResult, error) {
	payload := upsertRequest{Phone: phone, Name: name, AllowBroadcast: allowBroadcast}

	resp, err := c.do(ctx, OpUpsert, http.MethodPost, "/api/v1/addContact", payload, func(status int) bool {
		return status == http.StatusOK || status == http.StatusConflict
	})
	if err != nil {
		return UpsertResult{}, err
	}

	return UpsertResult{Accepted: true, StatusCode: resp.status, Body: string(resp.body)}, nil
}

// SendTemplateMessage succeeds only on 200 with a body whose "result" is not false.
func (c *WatiClient) SendTemplateMessage(ctx context.Context, phone, template, broadcast string, params []Parameter) (SendResult, error) {
	if params == nil {
		params = []Parameter{}
	}
	payload := sendRequest{
		Phone:         phone,
		TemplateName:  template,
		BroadcastName: broadcast,
		Parameters:    params,
	}

	resp, err := c.do(ctx, OpSend, http.MethodPost, "/api/v1/sendTemplateMessage", payload, func(status int) bool {
		return status == http.StatusOK
	})
	if err != nil {
		return SendResult{}, err
	}

	res := SendResult{StatusCode: resp.status, Body: string(resp.body)}
	if r := gjson.GetBytes(resp.body, "result"); r.Exists() && r.Type == gjson.False {
		return res, &PermanentError{Op: OpSend, StatusCode: resp.status, Body: res.Body}
	}

	res.Success = true
	return res, nil
}

func (c *WatiClient) do(ctx context.Context, op, method, path string, payload any, ok func(int) bool) (response, error) {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return response{}, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = b
	}

	var (
		lastErr      error
		lastEndpoint string
	)
	for i, ep := range c.endpoints {
		resp, err := c.withRetry(ctx, op, ep, method, path, body, ok)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}
		if IsPermanent(err) {
			return resp, err
		}

		lastErr, lastEndpoint = err, ep
		if i < len(c.endpoints)-1 {
			slog.Warn("provider endpoint exhausted, trying next", "op", op, "endpoint", ep, "error", err)
		}
	}

	return response{}, &EndpointsError{Tried: len(c.endpoints), Endpoint: lastEndpoint, Err: lastErr}
}

func (c *WatiClient) withRetry(ctx context.Context, op, endpoint, method, path string, body []byte, ok func(int) bool) (response, error) {
	var (
		result   response
		last     response
		lastErr  error
		attempts int
	)

	try := func() error {
		attempts++
		resp, err := c.attempt(ctx, method, endpoint+path, body)
		c.observe(op, resp.status)

		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			last, lastErr = response{}, err
			slog.Debug("provider request failed", "op", op, "endpoint", endpoint, "attempt", attempts, "error", err)
			return err
		}

		if ok(resp.status) {
			result = resp
			return nil
		}
		if !isRetryableStatus(resp.status) {
			result = resp
			return backoff.Permanent(&PermanentError{Op: op, StatusCode: resp.status, Body: string(resp.body)})
		}

		last, lastErr = resp, nil
		slog.Debug("provider request retryable status", "op", op, "endpoint", endpoint, "attempt", attempts, "status", resp.status)
		return errRetryableStatus
	}

	err := backoff.Retry(try, c.retry.newBackOff(ctx))
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return response{}, ctx.Err()
	}
	if IsPermanent(err) {
		return result, err
	}

	return response{}, &TransientError{
		Op:         op,
		Endpoint:   endpoint,
		Attempts:   attempts,
		StatusCode: last.status,
		Body:       string(last.body),
		Err:        lastErr,
	}
}

func (c *WatiClient) attempt(ctx context.Context, method, target string, body []byte) (response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}

	return response{status: resp.StatusCode, body: b}, nil
}

func (c *WatiClient) observe(op string, status int) {
	if c.observer != nil {
		c.observer.ProviderRequest(op, status)
	}
}
