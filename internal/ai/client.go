package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sehatlog-server/internal/config"
	"sehatlog-server/internal/models"
	"sehatlog-server/internal/pkg/logger"
)

// AnalysisRequest describes one file to analyze. FileData takes
// precedence; when only FileURL is set the client fetches the bytes
// first.
type AnalysisRequest struct {
	FileURL    string
	FileData   []byte
	MimeType   string
	ReportType models.ReportType
}

// AnalysisResult is the adapter's output: either the parsed structured
// payload or the deterministic fallback, tagged by Source. Callers never
// see a partially typed shape.
type AnalysisResult struct {
	Source              models.InsightSource
	Summary             models.Bilingual
	KeyFindings         []models.KeyFinding
	AbnormalValues      []models.AbnormalValue
	DoctorQuestions     []models.DoctorQuestion
	Recommendations     models.Recommendations
	RiskFactors         []string
	FollowUpSuggestions []string
	Confidence          int
	Disclaimers         models.Disclaimers
	Model               string
	ProcessingMS        int64
}

// APIError is returned when the hosted model cannot be reached or
// rejects the request.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model api error (status %d): %s", e.StatusCode, e.Message)
}

// Client is the analysis adapter used by the upload pipeline.
type Client interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient builds a Client for the Gemini-style generateContent REST
// API.
func NewClient(cfg config.AIConfig, log *logger.Logger) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing model API key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &client{
		log:        log.With("client", "ai"),
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Request/response shapes for the generateContent endpoint.

type generatePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *generateInline `json:"inline_data,omitempty"`
}

type generateInline struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
	SafetySettings   []safetySetting   `json:"safetySettings"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *client) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	data := req.FileData
	if len(data) == 0 {
		if req.FileURL == "" {
			return nil, fmt.Errorf("analysis request has neither file data nor file url")
		}
		fetched, err := c.fetch(ctx, req.FileURL)
		if err != nil {
			return nil, err
		}
		data = fetched
	}

	prompt := BuildPrompt(req.ReportType)
	body := generateRequest{
		Contents: []generateContent{{
			Parts: []generatePart{
				{Text: prompt},
				{InlineData: &generateInline{
					MimeType: req.MimeType,
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:     0.2,
			TopP:            0.8,
			MaxOutputTokens: 8192,
		},
		SafetySettings: []safetySetting{
			{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
			{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
			{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
			{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode model request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build model request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.log.Warn("model call rejected", "status", resp.StatusCode, "model", c.model)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "unparseable model response: " + err.Error()}
	}
	if out.Error != nil {
		return nil, &APIError{StatusCode: out.Error.Code, Message: out.Error.Message}
	}

	var text strings.Builder
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
	}

	result := ParseResponse(text.String())
	result.Model = c.model
	result.ProcessingMS = time.Since(start).Milliseconds()
	if result.Source == models.InsightSourceFallback {
		c.log.Warn("model response lacked structured payload, using fallback",
			"model", c.model, "responseBytes", text.Len())
	}
	return result, nil
}

// fetch downloads previously stored file bytes so the upload pipeline
// can analyze by URL.
func (c *client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build file fetch request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{StatusCode: 0, Message: "file fetch failed: " + err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "file fetch returned non-200"}
	}
	return io.ReadAll(resp.Body)
}
