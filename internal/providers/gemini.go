package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

	defaultMaxTokens = 8192
	requestTimeout   = 120 * time.Second
	maxEventBytes    = 1 << 20
	maxErrorBody     = 4096
)

// Gemini implements Generator for Google's Gemini API.
type Gemini struct {
	apiKey string
	model  string
	client *http.Client
}

// NewGemini creates a Gemini generator. The key comes from GEMINI_API_KEY,
// falling back to GOOGLE_API_KEY.
func NewGemini(model string) (*Gemini, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		return nil, ErrCredentialMissing
	}
	if model == "" {
		model = DefaultModel
	}
	// Generate bounds its own context; Stream runs until the caller cancels.
	return &Gemini{apiKey: key, model: model, client: &http.Client{}}, nil
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.model }

// Generate performs a single generateContent call.
func (g *Gemini) Generate(ctx context.Context, req Request) (Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/%s:generateContent", geminiAPIURL, g.model)
	httpResp, err := g.post(ctx, url, req)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("reading response: %w", err)
	}
	if err := statusError(httpResp.StatusCode, respBody); err != nil {
		return Response{}, err
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Response{}, fmt.Errorf("parsing response: %w", err)
	}
	if err := result.failure(); err != nil {
		return Response{}, err
	}

	content, reason := result.text()
	if content == "" {
		if reason != "" {
			return Response{}, fmt.Errorf("no content in response (finish reason %s)", reason)
		}
		return Response{}, errors.New("no content in response")
	}
	return Response{
		Content:      content,
		TokensUsed:   result.UsageMetadata.TotalTokenCount,
		FinishReason: reason,
	}, nil
}

// Stream calls streamGenerateContent with server-sent events and yields each
// text fragment as it is decoded. Breaking out of the loop cancels the
// request.
func (g *Gemini) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", geminiAPIURL, g.model)
		httpResp, err := g.post(ctx, url, req)
		if err != nil {
			yield("", err)
			return
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
			yield("", statusError(httpResp.StatusCode, body))
			return
		}

		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes)
		finished := false
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data:")
			if !ok {
				continue // comments, event names, blank separators
			}
			data = strings.TrimSpace(data)
			if data == "" {
				continue
			}

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				yield("", fmt.Errorf("parsing stream event: %w", err))
				return
			}
			if err := chunk.failure(); err != nil {
				yield("", err)
				return
			}
			text, reason := chunk.text()
			if text != "" && !yield(text, nil) {
				return
			}
			if reason != "" {
				finished = true
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("reading stream: %w", err))
			return
		}
		if !finished {
			yield("", errors.New("stream ended unexpectedly"))
		}
	}
}

func (g *Gemini) post(ctx context.Context, url string, req Request) (*http.Response, error) {
	payload, err := json.Marshal(newGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return httpResp, nil
}

func statusError(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &authError{status: status, message: strings.TrimSpace(string(body))}
	default:
		return &APIError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	}
}

func newGeminiRequest(req Request) geminiRequest {
	body := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: req.UserPrompt}},
			},
		},
		GenerationConfig: &geminiGenConfig{
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	if body.GenerationConfig.MaxOutputTokens == 0 {
		body.GenerationConfig.MaxOutputTokens = defaultMaxTokens
	}
	if req.Temperature > 0 {
		body.GenerationConfig.Temperature = &req.Temperature
	}
	return body
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *geminiFeedback   `json:"promptFeedback,omitempty"`
	UsageMetadata  geminiUsage       `json:"usageMetadata"`
	Error          *streamError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiUsage struct {
	TotalTokenCount int `json:"totalTokenCount"`
}

// failure reports an error object, a blocked prompt, or a candidate that
// stopped for a reason other than a normal end or the token limit.
func (r *geminiResponse) failure() error {
	if r.Error != nil {
		return r.Error
	}
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("prompt blocked: %s", r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) > 0 {
		switch reason := r.Candidates[0].FinishReason; reason {
		case "", "STOP", "MAX_TOKENS", "FINISH_REASON_UNSPECIFIED":
		default:
			return fmt.Errorf("response stopped: %s", reason)
		}
	}
	return nil
}

// text concatenates the parts of the first candidate.
func (r *geminiResponse) text() (string, string) {
	if len(r.Candidates) == 0 {
		return "", ""
	}
	c := r.Candidates[0]
	var b strings.Builder
	for _, part := range c.Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), c.FinishReason
}
