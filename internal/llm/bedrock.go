package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ignite/lead-intelligence/internal/scoring"
)

const defaultBedrockModelID = "anthropic.claude-3-sonnet-20240229-v1:0"

// bedrockInvoker is the slice of the Bedrock runtime client we use.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider scores leads through AWS Bedrock (Claude). All data
// stays within AWS.
type BedrockProvider struct {
	client  bedrockInvoker
	modelID string
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrockProvider creates a Bedrock-backed provider using the default
// AWS credential chain.
func NewBedrockProvider(ctx context.Context, modelID, region string) (*BedrockProvider, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	if modelID == "" {
		modelID = defaultBedrockModelID
	}
	return &BedrockProvider{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

// ScoreLeads asks Claude to score an encoded lead batch.
func (p *BedrockProvider) ScoreLeads(ctx context.Context, encodedBatch string, opts scoring.LLMOptions) ([]scoring.LLMScore, error) {
	content, err := p.invoke(ctx, scoreLeadsSystemPrompt, encodedBatch)
	if err != nil {
		return nil, err
	}
	return parseLeadScores(content)
}

// AnalyzePatterns asks Claude to analyze an encoded conversion batch.
func (p *BedrockProvider) AnalyzePatterns(ctx context.Context, encodedBatch string) (*scoring.ConversionPatterns, error) {
	content, err := p.invoke(ctx, analyzePatternsSystemPrompt, encodedBatch)
	if err != nil {
		return nil, err
	}
	return parsePatterns(content)
}

// PredictDealClose asks Claude for a close prediction on one encoded
// opportunity.
func (p *BedrockProvider) PredictDealClose(ctx context.Context, encodedRecord string) (*scoring.DealClosePrediction, error) {
	content, err := p.invoke(ctx, predictDealSystemPrompt, encodedRecord)
	if err != nil {
		return nil, err
	}
	return parseDealPrediction(content)
}

func (p *BedrockProvider) invoke(ctx context.Context, systemPrompt, userContent string) (string, error) {
	request := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        4000,
		System:           systemPrompt,
		Temperature:      0.2,
		Messages: []bedrockMessage{
			{
				Role:    "user",
				Content: []bedrockContentBlock{{Type: "text", Text: userContent}},
			},
		},
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return "", fmt.Errorf("Bedrock API error: %w", err)
	}

	var response bedrockResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("Bedrock returned no text content")
	}
	return text, nil
}
