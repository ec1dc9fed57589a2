package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gardenos/mailgarden/internal/core"
	"github.com/gardenos/mailgarden/internal/utils"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is an implementation of the LLMClient interface using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
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

const promptFormat = `You are an email triage system. Classify the email into one urgency zone:
- "red": needs action or a decision today (approvals, deadlines, escalations, urgent requests)
- "yellow": needs a response this week (follow-ups, questions, scheduling, active threads)
- "green": no action needed (newsletters, notifications, greetings, marketing)

Respond with a JSON object containing:
- zone: "red", "yellow" or "green"
- confidence: number between 0 and 1
- reasoning: brief explanation of the zone choice
- signals: array of short signal labels you observed (e.g. "deadline", "question", "bulk-mail")

Email:
Subject: %s
From: %s <%s>
Labels: %v
Thread reply: %t
Snippet:
%s

Respond only with the JSON object and nothing else.`

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ClassifyZone asks the model which urgency zone the email belongs to
func (c *GeminiClient) ClassifyZone(ctx context.Context, email *core.Email) (*core.ZoneAnalysis, error) {
	snippet := email.Snippet
	if snippet == "" {
		snippet = email.Body
	}
	snippet = c.textProcessor.ProcessText(snippet, c.maxBodySize)

	prompt := fmt.Sprintf(promptFormat,
		email.Subject, email.FromName, email.FromAddress, email.Labels, email.IsReply(), snippet)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	parsed, err := parseZoneResponse(responseText)
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
