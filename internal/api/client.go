package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yang-kun-long/insight-ingest/internal/model"
)

// Client talks to the ingestion backend over HTTP. All methods perform a
// single round trip and honor context cancellation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client. A zero timeout disables the
// client-level deadline; per-request contexts still apply.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// InitIngestion performs the combined dedup preflight / session
// initialization call. If the backend already holds fully processed
// equivalent content it answers exists=true with a download reference and no
// session is opened.
func (c *Client) InitIngestion(ctx context.Context, req InitRequest) (*InitResponse, error) {
	var resp InitResponse
	if err := c.postJSON(ctx, "/ingestions", req, &resp); err != nil {
		return nil, err
	}

	if resp.Identity == "" {
		return nil, &ProtocolError{Endpoint: "/ingestions", Reason: "missing identity"}
	}
	if !resp.Exists && req.Total > 0 && resp.SessionRef == "" {
		return nil, &ProtocolError{Endpoint: "/ingestions", Reason: "missing sessionRef"}
	}

	c.logger.Debug("ingestion initialized",
		zap.String("identity", resp.Identity),
		zap.Bool("exists", resp.Exists),
		zap.String("sessionRef", resp.SessionRef),
	)
	return &resp, nil
}

// Preflight asks whether equivalent content already exists without opening an
// upload session.
func (c *Client) Preflight(ctx context.Context, id model.Identity) (*InitResponse, error) {
	return c.InitIngestion(ctx, NewInitRequest(id, 0, false))
}

// UploadSegment uploads the raw bytes of segment index (1-based) to an open
// session.
func (c *Client) UploadSegment(ctx context.Context, sessionRef string, index int, data []byte) error {
	u := fmt.Sprintf("%s/ingestions/%s/segments?i=%d", c.baseURL, url.PathEscape(sessionRef), index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.serverError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// MissingSegments returns the indices not yet acknowledged by an open
// session, so a reused session can skip already transferred segments.
func (c *Client) MissingSegments(ctx context.Context, sessionRef string) ([]int, error) {
	var resp missingResponse
	path := "/ingestions/" + url.PathEscape(sessionRef) + "/missing"
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Missing, nil
}

// CompleteIngestion signals that every segment has been acknowledged and the
// backend may start merging.
func (c *Client) CompleteIngestion(ctx context.Context, sessionRef string) error {
	path := "/ingestions/" + url.PathEscape(sessionRef) + "/complete"
	return c.postJSON(ctx, path, nil, nil)
}

// IngestionStatus fetches the merge/transcode pipeline status for a session.
func (c *Client) IngestionStatus(ctx context.Context, sessionRef string) (StatusResponse, error) {
	var resp StatusResponse
	path := "/ingestions/" + url.PathEscape(sessionRef) + "/status"
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return StatusResponse{}, err
	}
	if resp.Stage == "" {
		return StatusResponse{}, &ProtocolError{Endpoint: path, Reason: "missing stage"}
	}
	return resp, nil
}

// StartDeepProcess kicks off the second, opaque AI pipeline for resolved
// content. The backend answers success when a pipeline for the content is
// already running, so the call is safe to repeat.
func (c *Client) StartDeepProcess(ctx context.Context, contentRef string) error {
	return c.postJSON(ctx, "/deep-process", deepProcessRequest{ContentRef: contentRef}, nil)
}

// DeepProcessStatus fetches the deep processing pipeline status.
func (c *Client) DeepProcessStatus(ctx context.Context, contentRef string) (StatusResponse, error) {
	var resp StatusResponse
	path := "/deep-process/" + url.PathEscape(contentRef) + "/status"
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return StatusResponse{}, err
	}
	if resp.Stage == "" {
		return StatusResponse{}, &ProtocolError{Endpoint: path, Reason: "missing stage"}
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, path, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.serverError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProtocolError{Endpoint: path, Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

// serverError reads a failed response and extracts the structured message if
// one is present.
func (c *Client) serverError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorBody
	message := ""
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			message = body.Error
		} else if body.Message != "" {
			message = body.Message
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(data))
		if message == "" {
			message = "request failed with status " + strconv.Itoa(resp.StatusCode)
		}
	}

	c.logger.Debug("server error",
		zap.Int("status", resp.StatusCode),
		zap.String("message", message),
	)
	return &ServerError{StatusCode: resp.StatusCode, Message: message}
}
