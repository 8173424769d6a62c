package clipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clip-orchestrator/constant"
	"clip-orchestrator/dto"
)

const (
	createProjectPath = "/project/create"
	apiKeyHeader      = "VIZARDAI_API_KEY"
)

var ErrRejected = errors.New("clipping service rejected the request")

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Launch creates one clipping project and returns the project id the service assigned.
func (c *Client) Launch(ctx context.Context, request dto.LaunchRequest) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createProjectPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("launch request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read launch response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: http status %d", ErrRejected, resp.StatusCode)
	}

	var out dto.LaunchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode launch response: %w", err)
	}
	if out.Code != constant.ClipperCodeSuccess {
		return "", fmt.Errorf("%w: code %d %s", ErrRejected, out.Code, out.ErrMsg)
	}
	if out.ProjectID == "" {
		return "", fmt.Errorf("%w: empty project id", ErrRejected)
	}

	zerolog.Ctx(ctx).Debug().
		Str("job_id", out.ProjectID.String()).
		Str("source_url", request.VideoURL).
		Msg("clip job launched")
	return out.ProjectID.String(), nil
}
