// Package ipfs 通过 Pinata 的 pinFileToIPFS 接口固定文件。
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultAPIURL     = "https://api.pinata.cloud/pinning/pinFileToIPFS"
	DefaultGatewayURL = "https://gateway.pinata.cloud/ipfs/"
)

// PinResult 是一次固定的结果
type PinResult struct {
	CID  string
	URL  string
	Size int64
}

// StatusError 表示 Pinata 返回了非 2xx 响应
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pinata http %d: %s", e.StatusCode, e.Body)
}

// UpstreamStatus 返回上游状态码
func (e *StatusError) UpstreamStatus() int {
	return e.StatusCode
}

type Client struct {
	httpClient *http.Client
	jwt        string
	apiURL     string
	gatewayURL string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

func WithAPIURL(url string) Option {
	return func(client *Client) {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			client.apiURL = trimmed
		}
	}
}

func WithGatewayURL(url string) Option {
	return func(client *Client) {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			client.gatewayURL = trimmed
		}
	}
}

func NewClient(jwt string, opts ...Option) (*Client, error) {
	jwt = strings.TrimSpace(jwt)
	if jwt == "" {
		return nil, errors.New("pinata jwt is not configured")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		jwt:        jwt,
		apiURL:     DefaultAPIURL,
		gatewayURL: DefaultGatewayURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !strings.HasSuffix(c.gatewayURL, "/") {
		c.gatewayURL += "/"
	}
	return c, nil
}

// GatewayURL 把 CID 拼成网关地址
func (c *Client) GatewayURL(cid string) string {
	return c.gatewayURL + cid
}

// PinFile 上传任意文件，name 写入 pinataMetadata
func (c *Client) PinFile(ctx context.Context, name, filename, contentType string, data []byte) (*PinResult, error) {
	if len(data) == 0 {
		return nil, errors.New("pinata: empty file")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}

	meta, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("marshal pinata metadata: %w", err)
	}
	if err := writer.WriteField("pinataMetadata", string(meta)); err != nil {
		return nil, fmt.Errorf("write pinata metadata: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinata request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read pinata response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"name":   name,
		}).Error("ipfs_pin_failed")
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed struct {
		IpfsHash  string `json:"IpfsHash"`
		PinSize   int64  `json:"PinSize"`
		Timestamp string `json:"Timestamp"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode pinata response: %w", err)
	}
	if parsed.IpfsHash == "" {
		return nil, errors.New("pinata response missing IpfsHash")
	}

	logrus.WithFields(logrus.Fields{
		"name":        name,
		"cid":         parsed.IpfsHash,
		"size":        parsed.PinSize,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("ipfs_pin_succeeded")

	return &PinResult{CID: parsed.IpfsHash, URL: c.GatewayURL(parsed.IpfsHash), Size: parsed.PinSize}, nil
}

// PinJSON 把 v 序列化为 metadata.json 后上传
func (c *Client) PinJSON(ctx context.Context, name string, v any) (*PinResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return c.PinFile(ctx, name, "metadata.json", "application/json", data)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
