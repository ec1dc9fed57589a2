package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gardenos/mailgarden/internal/core"
	"github.com/gardenos/mailgarden/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the LLMClient interface using OpenAI
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// zoneResponse represents the structured response from the LLM
type zoneResponse struct {
	Zone       string   `json:"zone"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Signals    []string `json:"signals"`
}

// systemPrompt is the zone-classification rubric sent with every request.
const systemPrompt = `You are an email triage system. Classify the email into one urgency zone:
- "red": needs action or a decision today (approvals, deadlines, escalations, urgent requests)
- "yellow": needs a response this week (follow-ups, questions, scheduling, active threads)
- "green": no action needed (newsletters, notifications, greetings, marketing)

Respond with a JSON object containing:
- zone: "red", "yellow" or "green"
- confidence: number between 0 and 1
- reasoning: brief explanation of the zone choice
- signals: array of short signal labels you observed (e.g. "deadline", "question", "bulk-mail")

Respond only with the JSON object and nothing else.`

const userPromptFormat = `Subject: %s
From: %s <%s>
Labels: %v
Thread reply: %t
Snippet:
%s`

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	client := openai.NewClient(apiKey)

	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// ClassifyZone asks the model which urgency zone the email belongs to
func (c *OpenAIClient) ClassifyZone(ctx context.Context, email *core.Email) (*core.ZoneAnalysis, error) {
	snippet := email.Snippet
	if snippet == "" {
		snippet = email.Body
	}
	snippet = c.textProcessor.ProcessText(snippet, c.maxBodySize)

	prompt := fmt.Sprintf(userPromptFormat,
		email.Subject, email.FromName, email.FromAddress, email.Labels, email.IsReply(), snippet)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	responseFormat := openai.ChatCompletionResponseFormat{
		Type: "json_object",
	}
	req.ResponseFormat = &responseFormat

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	parsed, err := parseZoneResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &core.ZoneAnalysis{
		Zone:       core.Zone(parsed.Zone),
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
		Signals:    parsed.Signals,
		ModelUsed:  c.modelName,
	}, nil
}

// parseZoneResponse decodes the model output, tolerating prose around the
// JSON object.
func parseZoneResponse(responseText string) (*zoneResponse, error) {
	var parsed zoneResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err == nil {
		return &parsed, nil
	}

	jsonStart := -1
	jsonEnd := -1
	for i := 0; i < len(responseText); i++ {
		if responseText[i] == '{' {
			jsonStart = i
			break
		}
	}
	for i := len(responseText) - 1; i >= 0; i-- {
		if responseText[i] == '}' {
			jsonEnd = i + 1
			break
		}
	}
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("failed to extract JSON from LLM response")
	}
	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return &parsed, nil
}
