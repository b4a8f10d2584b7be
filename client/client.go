package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/yeremiapane/table-manager/models"
)

// Client talks to the table API. It sets no timeout of its own; the transport's
// defaults apply.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client for the API rooted at baseURL, e.g. "http://localhost:8080/api".
// A nil httpClient means http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type tablePayload struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

type errorEnvelope struct {
	Message string `json:"message"`
	Data    struct {
		Code       string   `json:"code"`
		Duplicates []string `json:"duplicates"`
	} `json:"data"`
}

func (c *Client) List(ctx context.Context) ([]models.Table, error) {
	var out struct {
		Tables []models.Table `json:"tables"`
	}
	if err := c.do(ctx, http.MethodGet, "/tables", nil, &out); err != nil {
		return nil, err
	}
	if out.Tables == nil {
		out.Tables = []models.Table{}
	}
	return out.Tables, nil
}

func (c *Client) Create(ctx context.Context, name string, status models.TableStatus) (*models.Table, error) {
	var t models.Table
	body := tablePayload{Name: name, Status: string(status)}
	if err := c.do(ctx, http.MethodPost, "/tables", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Update sends a rename. An empty status leaves the stored status unchanged.
func (c *Client) Update(ctx context.Context, id, name string, status models.TableStatus) (*models.Table, error) {
	var t models.Table
	body := tablePayload{Name: name, Status: string(status)}
	if err := c.do(ctx, http.MethodPut, "/tables/"+url.PathEscape(id), body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tables/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var env errorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil {
			if env.Message != "" {
				apiErr.Message = env.Message
			}
			apiErr.Code = env.Data.Code
			apiErr.Duplicates = env.Data.Duplicates
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
