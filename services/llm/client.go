// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm defines the language-model capability interface and its
// backends.
//
// The agent orchestrator depends only on the Client interface, never on
// a concrete network client, so tests can swap in deterministic stubs.
package llm

import (
	"context"
	"encoding/json"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCall is set on assistant messages that requested an
	// operation, echoed back in the follow-up round.
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// Name and ToolCallID are set on tool-result messages.
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes one callable operation presented to the
// model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// ToolCall is the model's request to invoke one operation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Reply is one model response: either free text, or a tool call
// (Content may still carry commentary alongside the call).
type Reply struct {
	Content  string
	ToolCall *ToolCall
}

// Client is the capability interface for any LLM backend.
type Client interface {
	// Complete runs one conversation round. tools may be empty for
	// plain-text follow-ups. Implementations must honor ctx
	// cancellation and deadlines.
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Reply, error)
}
