package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taskbuddy/internal/models"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	openaiMaxRetries     = 3
	openaiInitialDelay   = 500 * time.Millisecond
	intentFunctionName   = "parse_task_intent"
)

const intentSystemPrompt = `You classify SMS messages sent to a personal task assistant.
Always call parse_task_intent.
time_value must repeat the user's own time words ("tomorrow at 6", "next friday").
Never compute dates, never output ISO timestamps or numeric epochs.
reminder_offset is in minutes before the task time ("remind me an hour before" = 60).
task_identifier is either the list number the user gave or a few words of the task.
time_zone is an IANA zone name when the user asks to change their zone.`

// OpenAIClient is a chat-completions client that asks the model for a
// structured task intent through a forced function call.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools"`
	ToolChoice  any           `json:"tool_choice"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

type openaiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

var intentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"intent": map[string]any{
			"type": "string",
			"enum": []string{
				string(models.IntentAddTask), string(models.IntentRemoveTask), string(models.IntentListTasks),
				string(models.IntentUpdateTask), string(models.IntentSetTimeZone), string(models.IntentUpdateReminder),
				string(models.IntentHelp), string(models.IntentUnknown),
			},
		},
		"task_content":    map[string]any{"type": "string", "description": "What the task is, without time words"},
		"task_identifier": map[string]any{"type": "string", "description": "List number or words identifying an existing task"},
		"time_value":      map[string]any{"type": "string", "description": "The user's time phrase, verbatim; never a timestamp"},
		"time_type":       map[string]any{"type": "string", "enum": []string{"none", "scheduled", "deadline"}},
		"reminder_offset": map[string]any{"type": "integer", "minimum": 0},
		"time_zone":       map[string]any{"type": "string"},
		"tense_used":      map[string]any{"type": "string", "enum": []string{"past", "present", "future"}},
	},
	"required": []string{"intent"},
}

// ClassifyIntent sends message (plus the user's current task list, numbered
// from 1) to the model and decodes the function-call arguments.
func (c *OpenAIClient) ClassifyIntent(ctx context.Context, message string, tasks []string) (*models.Intent, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	var user strings.Builder
	if len(tasks) > 0 {
		user.WriteString("Current tasks:\n")
		for i, t := range tasks {
			fmt.Fprintf(&user, "%d. %s\n", i+1, t)
		}
		user.WriteString("\n")
	}
	user.WriteString("Message: ")
	user.WriteString(message)

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: intentSystemPrompt},
			{Role: "user", Content: user.String()},
		},
		Tools: []chatTool{{
			Type: "function",
			Function: chatFunction{
				Name:        intentFunctionName,
				Description: "Extract the task-management intent from an SMS message",
				Parameters:  intentSchema,
			},
		}},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]string{"name": intentFunctionName},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("no function call in response")
	}
	var intent models.Intent
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.ToolCalls[0].Function.Arguments), &intent); err != nil {
		return nil, fmt.Errorf("failed to decode intent arguments: %w", err)
	}
	if intent.Intent == "" {
		intent.Intent = models.IntentUnknown
	}
	return &intent, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < openaiMaxRetries; attempt++ {
		if attempt > 0 {
			delay := openaiInitialDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var oe openaiError
			if json.Unmarshal(respBody, &oe) == nil && oe.Error.Message != "" {
				lastErr = fmt.Errorf("OpenAI API error (%d): %s", resp.StatusCode, oe.Error.Message)
			} else {
				lastErr = fmt.Errorf("OpenAI API error (%d)", resp.StatusCode)
			}
			// 429 and 5xx are worth another try
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return nil, lastErr
		}
		return respBody, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", openaiMaxRetries, lastErr)
}
