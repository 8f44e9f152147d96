// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jedam19899/loan-fairness-service/services/llm"
)

// scriptedClient replays a fixed sequence of replies and records every
// conversation it was handed.
type scriptedClient struct {
	replies []*llm.Reply
	errs    []error

	calls         int
	conversations [][]llm.Message
	toolsPerCall  [][]llm.ToolDefinition

	// blockUntilDeadline makes every call wait for ctx expiry and
	// return its error, simulating a slow backend.
	blockUntilDeadline bool
}

func (c *scriptedClient) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Reply, error) {
	i := c.calls
	c.calls++
	c.conversations = append(c.conversations, messages)
	c.toolsPerCall = append(c.toolsPerCall, tools)

	if c.blockUntilDeadline {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.replies) {
		return c.replies[i], nil
	}
	return &llm.Reply{Content: "unscripted"}, nil
}

func newOrchestratorFixture(client llm.Client) (*Orchestrator, *fakeStore, *fakeExplainer) {
	store := newFakeStore()
	explainer := &fakeExplainer{contributions: map[string]float64{"age": 1.5}}
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry, store, explainer)
	orchestrator := NewOrchestrator(client, dispatcher, registry, time.Second, nil)
	return orchestrator, store, explainer
}

// TestHandlePrompt_DirectAnswer verifies the no-tool path: one round,
// no dispatch, no tool result in the outcome.
func TestHandlePrompt_DirectAnswer(t *testing.T) {
	client := &scriptedClient{replies: []*llm.Reply{
		{Content: "Disparate impact compares approval rates between groups."},
	}}
	orchestrator, store, explainer := newOrchestratorFixture(client)

	outcome, err := orchestrator.HandlePrompt(context.Background(), "what is disparate impact?")
	require.NoError(t, err)

	assert.Equal(t, "Disparate impact compares approval rates between groups.", outcome.Response)
	assert.Nil(t, outcome.ToolResult)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, store.applications)
	assert.Zero(t, explainer.calls)
}

// TestHandlePrompt_ToolPath verifies the full two-round protocol with a
// disparate impact computation: (5/10) / (10/20) = 1.0.
func TestHandlePrompt_ToolPath(t *testing.T) {
	client := &scriptedClient{replies: []*llm.Reply{
		{ToolCall: &llm.ToolCall{
			ID:        "call_abc",
			Name:      OpDisparateImpact,
			Arguments: json.RawMessage(`{"privileged": "A", "unprivileged": "B"}`),
		}},
		{Content: "The disparate impact ratio is 1.0, indicating parity."},
	}}
	orchestrator, store, _ := newOrchestratorFixture(client)
	store.total = map[string]int{"A": 10, "B": 20}
	store.approved = map[string]int{"A": 5, "B": 10}

	outcome, err := orchestrator.HandlePrompt(context.Background(), "compute disparate impact of B vs A")
	require.NoError(t, err)

	assert.Equal(t, "The disparate impact ratio is 1.0, indicating parity.", outcome.Response)
	require.NotNil(t, outcome.ToolResult)
	assert.True(t, outcome.ToolResult.Succeeded())
	assert.InDelta(t, 1.0, outcome.ToolResult.Payload["ratio"], 1e-12)

	require.Equal(t, 2, client.calls)

	// Round 1 carries the catalog, round 2 must not.
	assert.Len(t, client.toolsPerCall[0], 3)
	assert.Empty(t, client.toolsPerCall[1])

	// The follow-up conversation keeps the original prompt and adds
	// the assistant tool call plus the serialized result.
	followUp := client.conversations[1]
	require.Len(t, followUp, 4)
	assert.Equal(t, llm.RoleSystem, followUp[0].Role)
	assert.Equal(t, llm.RoleUser, followUp[1].Role)
	assert.Equal(t, llm.RoleAssistant, followUp[2].Role)
	require.NotNil(t, followUp[2].ToolCall)
	assert.Equal(t, llm.RoleTool, followUp[3].Role)
	assert.Equal(t, "call_abc", followUp[3].ToolCallID)

	var echoed Result
	require.NoError(t, json.Unmarshal([]byte(followUp[3].Content), &echoed))
	assert.Equal(t, StatusSuccess, echoed.Status)
}

// TestHandlePrompt_RecoveredFailureStillGetsFollowUp verifies that a
// recovered domain failure (missing application) is serialized into
// round 2 instead of aborting the request.
func TestHandlePrompt_RecoveredFailureStillGetsFollowUp(t *testing.T) {
	client := &scriptedClient{replies: []*llm.Reply{
		{ToolCall: &llm.ToolCall{
			Name:      OpExplainApplication,
			Arguments: json.RawMessage(`{}`),
		}},
		{Content: "I could not run the explanation: the arguments were incomplete."},
	}}
	orchestrator, _, _ := newOrchestratorFixture(client)

	outcome, err := orchestrator.HandlePrompt(context.Background(), "explain application")
	require.NoError(t, err)

	require.NotNil(t, outcome.ToolResult)
	assert.False(t, outcome.ToolResult.Succeeded())
	assert.Equal(t, KindInvalidArguments, outcome.ToolResult.ErrorKind)
	assert.Equal(t, 2, client.calls)

	var echoed Result
	require.NoError(t, json.Unmarshal([]byte(client.conversations[1][3].Content), &echoed))
	assert.Equal(t, StatusError, echoed.Status)
	assert.Equal(t, KindInvalidArguments, echoed.ErrorKind)
}

// TestHandlePrompt_FirstRoundTimeout verifies a round-1 timeout
// short-circuits before any operation is dispatched.
func TestHandlePrompt_FirstRoundTimeout(t *testing.T) {
	client := &scriptedClient{blockUntilDeadline: true}
	store := newFakeStore()
	explainer := &fakeExplainer{}
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry, store, explainer)
	orchestrator := NewOrchestrator(client, dispatcher, registry, 20*time.Millisecond, nil)

	_, err := orchestrator.HandlePrompt(context.Background(), "ingest application app-1")
	require.Error(t, err)

	assert.Equal(t, KindLLMTimeout, KindOf(err))
	assert.Contains(t, err.Error(), "timed out after")
	assert.NotContains(t, err.Error(), "follow-up")

	// The dispatcher never ran: no stored application, no explanation.
	assert.Empty(t, store.applications)
	assert.Zero(t, explainer.calls)
	assert.Equal(t, 1, client.calls)
}

// TestHandlePrompt_FollowUpTimeout verifies a round-2 timeout fails the
// request even though the operation itself succeeded, and that the
// error distinguishes the round.
func TestHandlePrompt_FollowUpTimeout(t *testing.T) {
	client := &scriptedClient{
		replies: []*llm.Reply{
			{ToolCall: &llm.ToolCall{
				Name:      OpIngestApplication,
				Arguments: json.RawMessage(`{"application_id": "app-1", "features": {"group": "A"}}`),
			}},
		},
		errs: []error{nil, context.DeadlineExceeded},
	}
	orchestrator, store, _ := newOrchestratorFixture(client)

	_, err := orchestrator.HandlePrompt(context.Background(), "ingest app-1")
	require.Error(t, err)

	assert.Equal(t, KindLLMTimeout, KindOf(err))
	assert.Contains(t, err.Error(), "follow-up")

	// The operation ran before the follow-up failed.
	assert.Contains(t, store.applications, "app-1")
	assert.Equal(t, 2, client.calls)
}

// TestHandlePrompt_MalformedToolArguments verifies that a non-JSON
// argument payload from the model is fatal before dispatch.
func TestHandlePrompt_MalformedToolArguments(t *testing.T) {
	client := &scriptedClient{replies: []*llm.Reply{
		{ToolCall: &llm.ToolCall{
			Name:      OpIngestApplication,
			Arguments: json.RawMessage(`{"application_id": `),
		}},
	}}
	orchestrator, store, _ := newOrchestratorFixture(client)

	_, err := orchestrator.HandlePrompt(context.Background(), "ingest")
	require.Error(t, err)

	assert.Equal(t, KindMalformedToolArguments, KindOf(err))
	assert.Empty(t, store.applications)
	assert.Equal(t, 1, client.calls)
}

// TestHandlePrompt_UnknownOperation verifies the model selecting an
// operation outside the catalog is fatal.
func TestHandlePrompt_UnknownOperation(t *testing.T) {
	client := &scriptedClient{replies: []*llm.Reply{
		{ToolCall: &llm.ToolCall{
			Name:      "delete_all_records",
			Arguments: json.RawMessage(`{}`),
		}},
	}}
	orchestrator, _, _ := newOrchestratorFixture(client)

	_, err := orchestrator.HandlePrompt(context.Background(), "wipe the store")
	require.Error(t, err)

	assert.Equal(t, KindUnknownOperation, KindOf(err))
	assert.Equal(t, 1, client.calls)
}

// TestHandlePrompt_BackendError verifies non-timeout model failures map
// to llm_unavailable and keep the cause in the chain.
func TestHandlePrompt_BackendError(t *testing.T) {
	cause := errors.New("upstream returned 500")
	client := &scriptedClient{errs: []error{cause}}
	orchestrator, _, _ := newOrchestratorFixture(client)

	_, err := orchestrator.HandlePrompt(context.Background(), "hello")
	require.Error(t, err)

	assert.Equal(t, KindLLMUnavailable, KindOf(err))
	assert.ErrorIs(t, err, cause)
}

// TestHandlePrompt_EmptyArgumentsDefaulted verifies a tool call with no
// argument payload is treated as an empty object rather than malformed.
func TestHandlePrompt_EmptyArgumentsDefaulted(t *testing.T) {
	client := &scriptedClient{replies: []*llm.Reply{
		{ToolCall: &llm.ToolCall{Name: OpExplainApplication}},
		{Content: "The operation needs an application ID."},
	}}
	orchestrator, _, _ := newOrchestratorFixture(client)

	outcome, err := orchestrator.HandlePrompt(context.Background(), "explain something")
	require.NoError(t, err)

	require.NotNil(t, outcome.ToolResult)
	assert.Equal(t, KindInvalidArguments, outcome.ToolResult.ErrorKind)
}

// TestHandlePrompt_MissingCallIDDefaulted verifies that when the
// backend omits the call ID, the synthetic one appears on both the
// assistant echo and the tool message, so the pair stays linked.
func TestHandlePrompt_MissingCallIDDefaulted(t *testing.T) {
	client := &scriptedClient{replies: []*llm.Reply{
		{ToolCall: &llm.ToolCall{
			Name:      OpDisparateImpact,
			Arguments: json.RawMessage(`{"privileged": "A", "unprivileged": "B"}`),
		}},
		{Content: "done"},
	}}
	orchestrator, _, _ := newOrchestratorFixture(client)

	_, err := orchestrator.HandlePrompt(context.Background(), "compute")
	require.NoError(t, err)

	require.Equal(t, 2, client.calls)
	echo := client.conversations[1][2]
	require.NotNil(t, echo.ToolCall)
	assert.Equal(t, "call_0", echo.ToolCall.ID)
	assert.Equal(t, "call_0", client.conversations[1][3].ToolCallID)
}

// TestState_IsTerminal verifies the terminal-state predicate.
func TestState_IsTerminal(t *testing.T) {
	assert.True(t, StateDone.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateStart.IsTerminal())
	assert.False(t, StateAwaitFirstReply.IsTerminal())
	assert.False(t, StateAwaitToolResult.IsTerminal())
	assert.False(t, StateAwaitSecondReply.IsTerminal())
}
