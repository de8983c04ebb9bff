package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/lead-intelligence/internal/scoring"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider scores leads through the OpenAI chat completions API.
type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultOpenAIBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// SetBaseURL overrides the API endpoint (useful for testing).
func (p *OpenAIProvider) SetBaseURL(baseURL string) {
	p.baseURL = baseURL
}

// ScoreLeads asks the model to score an encoded lead batch.
func (p *OpenAIProvider) ScoreLeads(ctx context.Context, encodedBatch string, opts scoring.LLMOptions) ([]scoring.LLMScore, error) {
	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}
	content, err := p.complete(ctx, model, scoreLeadsSystemPrompt, encodedBatch)
	if err != nil {
		return nil, err
	}
	return parseLeadScores(content)
}

// AnalyzePatterns asks the model to analyze an encoded conversion batch.
func (p *OpenAIProvider) AnalyzePatterns(ctx context.Context, encodedBatch string) (*scoring.ConversionPatterns, error) {
	content, err := p.complete(ctx, p.model, analyzePatternsSystemPrompt, encodedBatch)
	if err != nil {
		return nil, err
	}
	return parsePatterns(content)
}

// PredictDealClose asks the model for a close prediction on one
// encoded opportunity.
func (p *OpenAIProvider) PredictDealClose(ctx context.Context, encodedRecord string) (*scoring.DealClosePrediction, error) {
	content, err := p.complete(ctx, p.model, predictDealSystemPrompt, encodedRecord)
	if err != nil {
		return nil, err
	}
	return parseDealPrediction(content)
}

func (p *OpenAIProvider) complete(ctx context.Context, model, systemPrompt, userContent string) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	request := openAIRequest{
		Model: model,
		Messages: []openAIChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: 0.2,
		MaxTokens:   4000,
	}

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}
