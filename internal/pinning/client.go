package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kerc-health/recordvault/internal/config"
	"github.com/kerc-health/recordvault/pkg/metrics"
)

// ErrPinFailed marks an upstream failure of the content-pinning service. The
// upload pipeline treats it as fatal for the current batch.
var ErrPinFailed = errors.New("pinning service request failed")

// Client talks to the external pinning service that stores record payloads
// and returns a content-addressed identifier for each.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	metrics   *metrics.Collector
	log       *zap.Logger
}

func NewClient(cfg config.PinningConfig, m *metrics.Collector, log *zap.Logger) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		http:      &http.Client{Timeout: cfg.Timeout},
		metrics:   m,
		log:       log,
	}
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinErrorResponse struct {
	Error string `json:"error"`
}

// Pin uploads one file and returns its content-addressed identifier. The
// display name travels as pin metadata only; it does not influence the CID.
func (c *Client) Pin(ctx context.Context, name string, content io.Reader) (string, error) {
	start := time.Now()
	cid, err := c.pin(ctx, name, content)
	if c.metrics != nil {
		c.metrics.PinDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.PinFailures.Inc()
		}
	}
	return cid, err
}

func (c *Client) pin(ctx context.Context, name string, content io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("reading file content: %w", err)
	}

	meta, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", fmt.Errorf("encoding pin metadata: %w", err)
	}
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", fmt.Errorf("writing pin metadata: %w", err)
	}
	if err := mw.WriteField("pinataOptions", `{"cidVersion":0}`); err != nil {
		return "", fmt.Errorf("writing pin options: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalizing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", fmt.Errorf("building pin request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.apiSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPinFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr pinErrorResponse
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		c.log.Warn("pin request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("file", name),
		)
		return "", fmt.Errorf("%w: %s", ErrPinFailed, msg)
	}

	var pr pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrPinFailed, err)
	}
	if pr.IpfsHash == "" {
		return "", fmt.Errorf("%w: empty content identifier in response", ErrPinFailed)
	}

	return pr.IpfsHash, nil
}
