package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sashabaranov/go-openai/jsonschema"
)

var tracer = otel.Tracer("fairness.llm.ollama") // Specific tracer name

// OllamaClient talks to a local Ollama server over its /api/chat
// endpoint, which supports OpenAI-style function calling for models
// that were trained for it.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string                `json:"name"`
		Description string                `json:"description"`
		Parameters  jsonschema.Definition `json:"parameters"`
	} `json:"function"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message   ollamaMessage `json:"message"`
	CreatedAt string        `json:"created_at"`
	Done      bool          `json:"done"`
}

func NewOllamaClient() (*OllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	model := os.Getenv("OLLAMA_MODEL")
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL environment variable not set")
	}
	if model == "" {
		slog.Warn("OLLAMA_MODEL not set, defaulting to gpt-oss")
		model = "gpt-oss"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", model)
	return &OllamaClient{
		// Round deadlines come from the caller's context; this is the
		// absolute ceiling for a hung connection.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		model:      model,
	}, nil
}

// Complete implements the Client interface.
func (o *OllamaClient) Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Reply, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))
	slog.Debug("Running chat completion via Ollama", "model", o.model, "tools", len(tools))

	payload := ollamaChatRequest{
		Model:    o.model,
		Messages: toOllamaMessages(messages),
		Stream:   false,
	}
	for _, t := range tools {
		var tool ollamaTool
		tool.Type = "function"
		tool.Function.Name = t.Name
		tool.Function.Description = t.Description
		tool.Function.Parameters = t.Parameters
		payload.Tools = append(payload.Tools, tool)
	}

	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal Ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/api/chat", bytes.NewReader(reqBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build Ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("Ollama API call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, string(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode Ollama response: %w", err)
	}

	reply := &Reply{Content: chatResp.Message.Content}
	if len(chatResp.Message.ToolCalls) > 0 {
		// One tool call per round; extra calls are ignored.
		call := chatResp.Message.ToolCalls[0]
		reply.ToolCall = &ToolCall{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
	}
	return reply, nil
}

func toOllamaMessages(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		msg := ollamaMessage{
			Role:    m.Role,
			Content: m.Content,
		}
		if m.ToolCall != nil {
			var call ollamaToolCall
			call.Function.Name = m.ToolCall.Name
			call.Function.Arguments = m.ToolCall.Arguments
			msg.ToolCalls = []ollamaToolCall{call}
		}
		out = append(out, msg)
	}
	return out
}
