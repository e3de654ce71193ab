package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const modelImage = "gemini-2.5-flash-image"

// Failure classes callers branch on when deciding how a run is reported.
var (
	ErrAuth          = errors.New("gemini: invalid or missing API key")
	ErrSafetyBlocked = errors.New("gemini: blocked by safety filters")
	ErrNoCandidates  = errors.New("gemini: response contains no candidates")
	ErrTextOnly      = errors.New("gemini: model returned text instead of an image")
)

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// GenerateImage sends one reference image plus a prompt and returns the
// single image the model produced. Text-only answers, empty candidate
// lists and safety blocks are mapped to the sentinel errors above.
func (c *Client) GenerateImage(ctx context.Context, ref ImageInput, prompt string) (Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Image{}, errors.New("prompt is empty")
	}
	if len(ref.Data) == 0 {
		return Image{}, errors.New("reference image is empty")
	}

	mime := strings.TrimSpace(ref.MIME)
	if mime == "" {
		mime = "image/png"
	}

	req := generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: prompt},
				{InlineData: &blob{
					Data:     base64.StdEncoding.EncodeToString(ref.Data),
					MimeType: mime,
				}},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}

	return c.generateContent(ctx, modelImage, req)
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (Image, error) {
	if c.httpClient == nil {
		return Image{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Image{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Image{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Image{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Image{}, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("gemini response", "model", model, "status", httpResp.Status, "bytes", len(rawBody))

	if httpResp.StatusCode >= 400 {
		return Image{}, statusError(httpResp, rawBody)
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return Image{}, fmt.Errorf("decode response: %w", err)
	}

	return extractImage(decoded)
}

func statusError(httpResp *http.Response, rawBody []byte) error {
	message, apiStatus := parseAPIError(rawBody)
	if message == "" {
		message = truncate(strings.TrimSpace(string(rawBody)), 300)
	}

	code := httpResp.StatusCode
	if code == http.StatusUnauthorized || code == http.StatusForbidden ||
		apiStatus == "UNAUTHENTICATED" || apiStatus == "PERMISSION_DENIED" {
		return fmt.Errorf("%w: %s", ErrAuth, message)
	}
	if isSafetyMarker(apiStatus) || isSafetyMarker(message) {
		return fmt.Errorf("%w: %s", ErrSafetyBlocked, message)
	}

	return fmt.Errorf("gemini API %s: %s", httpResp.Status, message)
}

// isSafetyMarker reports whether an API error status or message names
// the safety-filter family. Some rejections arrive as a plain HTTP 400
// with the reason only in the error text, not as a finishReason.
func isSafetyMarker(value string) bool {
	upper := strings.ToUpper(value)
	return strings.Contains(upper, "SAFETY") || strings.Contains(upper, "PROHIBITED_CONTENT")
}

func extractImage(resp generateContentResponse) (Image, error) {
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return Image{}, fmt.Errorf("%w: prompt blocked (%s)", ErrSafetyBlocked, fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return Image{}, ErrNoCandidates
	}

	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case "SAFETY", "IMAGE_SAFETY", "PROHIBITED_CONTENT":
		return Image{}, fmt.Errorf("%w: finish reason %s", ErrSafetyBlocked, cand.FinishReason)
	}

	var textBuilder strings.Builder
	for _, p := range cand.Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return Image{}, fmt.Errorf("decode image payload: %w", err)
			}
			return Image{Data: data, MIME: p.InlineData.MimeType}, nil
		}
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
	}

	if text := strings.TrimSpace(textBuilder.String()); text != "" {
		return Image{}, fmt.Errorf("%w: %s", ErrTextOnly, truncate(text, 160))
	}
	return Image{}, ErrNoCandidates
}

func parseAPIError(rawBody []byte) (message, status string) {
	var decoded apiError
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return "", ""
	}
	return strings.TrimSpace(decoded.Error.Message), decoded.Error.Status
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max] + "..."
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
