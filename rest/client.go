// Package rest is a JSON client for a single collection of the rankings API.
//
// The API wraps every payload in a `{"data": ...}` envelope:
//
//	GET    <collection>       -> {"data": [record, ...]}
//	POST   <collection>       -> {"data": record | [record, ...]}
//	PUT    <collection>/<id>  -> success status, body ignored
//	DELETE <collection>/<id>  -> success status, body ignored
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rankdesk/rankdesk/domain"
)

// maxErrorBody bounds how much of a failed response body is kept in a StatusError.
const maxErrorBody = 4 << 10

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Is makes a 404 StatusError match domain.ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == domain.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to one collection endpoint.
type Client struct {
	collectionURL string
	httpClient    *http.Client
	batchCreate   bool
}

// New creates a Client for baseURL joined with collectionPath,
// e.g. "https://api.example.com/api" and "phone/processor_rankings".
func New(baseURL, collectionPath string, options ...func(*Client) error) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %s : %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in base URL", parsed.Scheme)
	}

	collectionURL, err := url.JoinPath(strings.TrimSuffix(baseURL, "/"), strings.Trim(collectionPath, "/"))
	if err != nil {
		return nil, fmt.Errorf("building collection URL : %w", err)
	}

	client := &Client{
		collectionURL: collectionURL,
		httpClient:    http.DefaultClient,
	}
	for _, option := range options {
		if err := option(client); err != nil {
			return nil, fmt.Errorf("applying option on client : %w", err)
		}
	}
	return client, nil
}

// WithHTTPClient sets the http.Client used for every request.
func WithHTTPClient(httpClient *http.Client) func(*Client) error {
	return func(client *Client) error {
		if httpClient == nil {
			return errors.New("http client is nil")
		}
		client.httpClient = httpClient
		return nil
	}
}

// WithBatchCreate wraps created records in a single element array, for APIs that
// only accept batches on the create endpoint.
func WithBatchCreate(enabled bool) func(*Client) error {
	return func(client *Client) error {
		client.batchCreate = enabled
		return nil
	}
}

// URL returns the collection URL.
func (c *Client) URL() string {
	return c.collectionURL
}

// List fetches the whole collection.
func (c *Client) List(ctx context.Context) ([]domain.RawRecord, error) {
	envelope, err := c.do(ctx, http.MethodGet, c.collectionURL, nil, true)
	if err != nil {
		return nil, err
	}
	records, err := envelope.Records()
	if err != nil {
		return nil, fmt.Errorf("decoding collection : %w", err)
	}
	return records, nil
}

// Create posts record and returns the raw response envelope.
func (c *Client) Create(ctx context.Context, record any) (*domain.Envelope, error) {
	var body any = record
	if c.batchCreate {
		body = []any{record}
	}
	return c.do(ctx, http.MethodPost, c.collectionURL, body, true)
}

// Update replaces the record with id.
func (c *Client) Update(ctx context.Context, id int64, record any) error {
	_, err := c.do(ctx, http.MethodPut, c.itemURL(id), record, false)
	return err
}

// Delete removes the record with id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, c.itemURL(id), nil, false)
	return err
}

func (c *Client) itemURL(id int64) string {
	return c.collectionURL + "/" + strconv.FormatInt(id, 10)
}

// do sends one request. The response envelope is decoded only when decode is set;
// otherwise the body is drained and discarded.
func (c *Client) do(ctx context.Context, method, target string, body any, decode bool) (*domain.Envelope, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body : %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request : %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s %s : %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(errBody)),
		}
	}

	if !decode {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	}

	var envelope domain.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding response envelope : %w", err)
	}
	return &envelope, nil
}
