package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/gardenos/mailgarden/internal/core"
	"github.com/gardenos/mailgarden/internal/utils"
	"go.uber.org/zap"
)

// BedrockClient is an implementation of the LLMClient interface using Amazon Bedrock
type BedrockClient struct {
	client        *bedrockruntime.Client
	modelID       string
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

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockClient {
	return &BedrockClient{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// ClassifyZone asks the model which urgency zone the email belongs to
func (c *BedrockClient) ClassifyZone(ctx context.Context, email *core.Email) (*core.ZoneAnalysis, error) {
	snippet := email.Snippet
	if snippet == "" {
		snippet = email.Body
	}
	snippet = c.textProcessor.ProcessText(snippet, c.maxBodySize)

	prompt := fmt.Sprintf(promptFormat,
		email.Subject, email.FromName, email.FromAddress, email.Labels, email.IsReply(), snippet)

	var payload []byte
	var err error
	if c.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        c.maxTokens,
			"temperature":       c.temperature,
			"top_p":             c.topP,
			"messages": []map[string]interface{}{
				{"role": "user", "content": prompt},
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := c.extractResponseText(resp.Body)
	if err != nil {
		return nil, err
	}

	parsed, err := parseZoneResponse(responseText)
	if err != nil {
		return nil, err
	}

	return &core.ZoneAnalysis{
		Zone:       core.Zone(parsed.Zone),
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
		Signals:    parsed.Signals,
		ModelUsed:  c.modelID,
	}, nil
}

// extractResponseText pulls the completion text out of the model-specific
// response envelope.
func (c *BedrockClient) extractResponseText(body []byte) (string, error) {
	if c.isAnthropicModel() {
		var claudeResp struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		if len(claudeResp.Content) == 0 {
			return "", fmt.Errorf("empty response from Claude model")
		}
		return claudeResp.Content[0].Text, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	}
	return string(body), nil
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.claude")
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
