package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// API is the subset of the storefront HTTP API the checkout workflow calls.
type API interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.CreateOrderResult, error)
	UploadProof(ctx context.Context, req *model.UploadProofRequest) (*model.ProofResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	TrackOrder(ctx context.Context, trackingCode string) (*model.TrackingView, error)
	GetProfile(ctx context.Context) (*model.CustomerProfile, error)
	SaveProfile(ctx context.Context, profile *model.CustomerProfile) (*model.CustomerProfile, error)
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Shortages decodes the per-product details of an INSUFFICIENT_STOCK error.
func (e *APIError) Shortages() []model.StockShortage {
	if e.Code != model.ErrCodeInsufficientStock || len(e.Details) == 0 {
		return nil
	}
	var shortages []model.StockShortage
	if err := json.Unmarshal(e.Details, &shortages); err != nil {
		return nil
	}
	return shortages
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// APIKey is sent as X-API-Key when set.
	APIKey string
	// Token is sent as a bearer token when set.
	Token      string
	HTTPClient *http.Client
}

// Client calls the storefront HTTP API.
type Client struct {
	baseURL string
	opts    ClientOptions
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates an API client for baseURL.
func NewClient(baseURL string, opts ClientOptions, logger zerolog.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		http:    httpClient,
		logger:  logger.With().Str("component", "api-client").Logger(),
	}
}

// Authenticated reports whether requests carry a bearer token.
func (c *Client) Authenticated() bool {
	return c.opts.Token != ""
}

func (c *Client) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var product model.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.CreateOrderResult, error) {
	var result model.CreateOrderResult
	if err := c.do(ctx, http.MethodPost, "/orders", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UploadProof(ctx context.Context, req *model.UploadProofRequest) (*model.ProofResult, error) {
	var result model.ProofResult
	if err := c.do(ctx, http.MethodPost, "/orders/proof", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, http.MethodPost, "/orders/cancel", model.CancelOrderRequest{OrderID: orderID}, nil)
}

func (c *Client) TrackOrder(ctx context.Context, trackingCode string) (*model.TrackingView, error) {
	var view model.TrackingView
	if err := c.do(ctx, http.MethodPost, "/orders/track", model.TrackOrderRequest{TrackingCode: trackingCode}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) GetProfile(ctx context.Context) (*model.CustomerProfile, error) {
	var profile model.CustomerProfile
	if err := c.do(ctx, http.MethodGet, "/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) SaveProfile(ctx context.Context, profile *model.CustomerProfile) (*model.CustomerProfile, error) {
	var saved model.CustomerProfile
	if err := c.do(ctx, http.MethodPut, "/profile", profile, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.APIKey != "" {
		req.Header.Set("X-API-Key", c.opts.APIKey)
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return fmt.Errorf("error calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Error   string          `json:"error"`
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		apiErr.Code = model.ErrCodeInternalError
		apiErr.Message = resp.Status
		return apiErr
	}

	apiErr.Code = body.Code
	apiErr.Message = body.Error
	apiErr.Details = body.Details
	if apiErr.Code == "" {
		apiErr.Code = model.ErrCodeInternalError
	}
	return apiErr
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
