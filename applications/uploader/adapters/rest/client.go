package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/mediaupload/applications/uploader/domain"
	"github.com/donmikel/mediaupload/applications/uploader/interfaces"
	"github.com/donmikel/mediaupload/pkg/uploadapi"
)

const maxErrorBody = 4 << 10

var defaultPurposes = []domain.Purpose{
	domain.PurposeProductImage,
	domain.PurposeVideo,
	domain.PurposeThumbnail,
	domain.PurposeAvatar,
	domain.PurposeBroadcastCover,
}

// Client talks to the upload backend API. It issues intents and reads upload status.
type Client struct {
	doer    interfaces.Doer
	baseURL *url.URL
	headers http.Header
	paths   map[domain.Purpose]string
	logger  log.Logger
}

type Option func(*Client)

// WithHeaders sets headers added to every API request, e.g. authorization.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		c.headers = h.Clone()
	}
}

// WithPurposePaths registers purposes or overrides their intent endpoint paths.
func WithPurposePaths(paths map[domain.Purpose]string) Option {
	return func(c *Client) {
		for purpose, path := range paths {
			c.paths[purpose] = path
		}
	}
}

func WithLogger(logger log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(doer interfaces.Doer, baseURL string, opts ...Option) (*Client, error) {
	if doer == nil {
		return nil, errors.New("nil http doer")
	}

	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("can't parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		doer:    doer,
		baseURL: u,
		headers: http.Header{},
		paths:   map[domain.Purpose]string{},
		logger:  log.NewNopLogger(),
	}
	for _, purpose := range defaultPurposes {
		c.paths[purpose] = uploadapi.IntentPath(string(purpose))
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) RequestIntent(ctx context.Context, purpose domain.Purpose, contentType string) (domain.UploadIntent, error) {
	const op = "request intent"

	path, ok := c.paths[purpose]
	if !ok {
		return domain.UploadIntent{}, domain.NewError(domain.KindIntentRejected, op, "", fmt.Errorf("unknown purpose %q", purpose))
	}
	if _, _, err := mime.ParseMediaType(contentType); err != nil || strings.TrimSpace(contentType) == "" {
		return domain.UploadIntent{}, domain.NewError(domain.KindIntentRejected, op, "", fmt.Errorf("invalid content type %q", contentType))
	}

	var resp uploadapi.IntentResponse
	status, err := c.post(ctx, path, uploadapi.IntentRequest{ContentType: contentType}, &resp)
	if err != nil {
		kind := domain.KindTransport
		if isRejection(status) {
			kind = domain.KindIntentRejected
		}
		return domain.UploadIntent{}, domain.NewError(classify(ctx, kind), op, "", err)
	}

	if resp.Key == "" || resp.URL == "" {
		return domain.UploadIntent{}, domain.NewError(domain.KindTransport, op, resp.Key, errors.New("malformed intent response"))
	}

	level.Debug(c.logger).Log("msg", "upload intent issued",
		"key", resp.Key,
		"purpose", purpose,
		"content_type", contentType,
	)

	headers := resp.Headers
	if headers == nil {
		headers = http.Header{}
	}

	return domain.UploadIntent{
		Key:         resp.Key,
		Destination: resp.URL,
		Headers:     headers,
	}, nil
}

func (c *Client) GetStatus(ctx context.Context, key string) (domain.StatusResult, error) {
	const op = "get status"

	var resp uploadapi.StatusResponse
	if _, err := c.post(ctx, uploadapi.StatusPath, uploadapi.StatusRequest{Key: key}, &resp); err != nil {
		return domain.StatusResult{}, domain.NewError(classify(ctx, domain.KindTransport), op, key, err)
	}

	result := domain.StatusResult{Status: domain.ValidationStatus(resp.Status), URL: resp.URL}
	if !result.Status.Valid() {
		return domain.StatusResult{}, domain.NewError(domain.KindTransport, op, key, fmt.Errorf("unknown status %q", resp.Status))
	}
	if result.Status == domain.StatusSucceeded && result.URL == "" {
		return domain.StatusResult{}, domain.NewError(domain.KindTransport, op, key, errors.New("succeeded status without url"))
	}
	if result.Status != domain.StatusSucceeded {
		result.URL = ""
	}

	return result, nil
}

// post sends payload as JSON and decodes a 2xx response into out.
// The returned status is 0 when no response was received.
func (c *Client) post(ctx context.Context, path string, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("can't encode request: %w", err)
	}

	target := c.resolve(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("can't create request: %w", err)
	}
	for name, values := range c.headers {
		req.Header[name] = append([]string(nil), values...)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST %s: %w", target, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("POST %s: %s", target, responseError(resp))
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("can't decode response: %w", err)
	}

	return resp.StatusCode, nil
}

func (c *Client) resolve(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

func responseError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var apiErr uploadapi.ErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, apiErr.Error)
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, text)
	}

	return fmt.Sprintf("unexpected status %d", resp.StatusCode)
}

// isRejection reports a client-side refusal by the backend. Timeouts and throttling are transient.
func isRejection(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}

// classify turns kind into KindCanceled or KindTimeout when ctx ended the call.
func classify(ctx context.Context, kind domain.Kind) domain.Kind {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return domain.KindCanceled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.KindTimeout
	}
	return kind
}
