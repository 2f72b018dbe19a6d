package robot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/teslashibe/go-g1/internal/httpc"
	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/actions"
)

// HTTPTransport talks to the executor's /cmd API.
type HTTPTransport struct {
	BaseURL string

	client *http.Client
	upload *http.Client
	logger *slog.Logger
}

// NewHTTPTransport creates a transport for the executor at baseURL,
// e.g. "http://192.168.1.72:6000".
func NewHTTPTransport(baseURL string, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = log.Component("robot")
	}
	return &HTTPTransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.Client,
		upload:  httpc.NewClient(httpc.UploadTimeout),
		logger:  logger,
	}
}

// cmdResponse is the executor's reply envelope.
type cmdResponse struct {
	Status string        `json:"status"`
	Msg    string        `json:"msg"`
	Group  actions.Group `json:"group"`
	Action string        `json:"action"`
	ID     int           `json:"id"`
}

// Speak asks the robot to synthesize text. It returns once the executor has
// accepted the request.
func (t *HTTPTransport) Speak(ctx context.Context, text string) error {
	_, err := t.post(ctx, "/cmd/speak", map[string]string{"text": text})
	if err != nil {
		t.logger.Warn("speak failed", "error", err)
	}
	return err
}

// Stop halts audio output.
func (t *HTTPTransport) Stop(ctx context.Context) error {
	_, err := t.post(ctx, "/cmd/stop", struct{}{})
	if err != nil {
		t.logger.Warn("stop failed", "error", err)
	}
	return err
}

// Action runs desc on the executor and returns what it resolved to.
func (t *HTTPTransport) Action(ctx context.Context, desc actions.Descriptor) (actions.Resolved, error) {
	resp, err := t.post(ctx, "/cmd/action", desc)
	if err != nil {
		t.logger.Warn("action failed", "action", desc.String(), "error", err)
		return actions.Resolved{}, err
	}
	return actions.Resolved{Group: resp.Group, ID: resp.ID, Name: resp.Action}, nil
}

// UploadAudio posts a WAV file as multipart form field "file".
func (t *HTTPTransport) UploadAudio(ctx context.Context, name string, wav []byte) error {
	if t.BaseURL == "" {
		return ErrNoServer
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("robot: build upload: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return fmt.Errorf("robot: build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("robot: build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/cmd/play_wav", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	_, err = t.do(t.upload, "/cmd/play_wav", req)
	if err != nil {
		t.logger.Warn("upload failed", "file", name, "error", err)
	}
	return err
}

func (t *HTTPTransport) post(ctx context.Context, endpoint string, payload any) (*cmdResponse, error) {
	if t.BaseURL == "" {
		return nil, ErrNoServer
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("robot %s: marshal: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(t.client, endpoint, req)
}

func (t *HTTPTransport) do(c *http.Client, endpoint string, req *http.Request) (*cmdResponse, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("robot %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("robot %s: read response: %w", endpoint, err)
	}

	var out cmdResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Msg
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: msg}
	}
	return &out, nil
}
