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
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jedam19899/loan-fairness-service/services/llm"
)

// State represents a state of the per-request orchestration machine.
//
// Transitions:
//
//	START → AWAIT_FIRST_REPLY → DONE                  (direct answer)
//	START → AWAIT_FIRST_REPLY → AWAIT_TOOL_RESULT
//	      → AWAIT_SECOND_REPLY → DONE                 (tool path)
//
// FAILED is reachable from any non-terminal state.
type State string

const (
	StateStart            State = "START"
	StateAwaitFirstReply  State = "AWAIT_FIRST_REPLY"
	StateAwaitToolResult  State = "AWAIT_TOOL_RESULT"
	StateAwaitSecondReply State = "AWAIT_SECOND_REPLY"
	StateDone             State = "DONE"
	StateFailed           State = "FAILED"
)

// IsTerminal returns true for DONE and FAILED.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Round labels for timeout reporting and metrics. A round-1 and a
// round-2 timeout map to the same error kind but callers must be able
// to tell which round failed.
const (
	roundFirst    = "first"
	roundFollowUp = "follow_up"
)

// Outcome is the terminal result of one agent request: the model's
// final text plus the raw tool result, when an operation was executed.
type Outcome struct {
	Response   string
	ToolResult *Result
}

// Orchestrator drives the two-round conversation protocol.
//
// Each request runs its own instance of the state machine; the
// orchestrator itself holds no per-request state and is safe for
// concurrent use. Conversations are discarded once the outcome is
// returned — there is no cross-request memory.
type Orchestrator struct {
	client     llm.Client
	dispatcher *Dispatcher
	registry   *Registry
	timeout    time.Duration
	gate       *semaphore.Weighted
}

// NewOrchestrator builds an orchestrator.
//
// timeout bounds each individual model round. gate bounds concurrent
// outbound model calls and may be shared with the attribution engine;
// nil disables bounding (tests).
func NewOrchestrator(client llm.Client, dispatcher *Dispatcher, registry *Registry, timeout time.Duration, gate *semaphore.Weighted) *Orchestrator {
	return &Orchestrator{
		client:     client,
		dispatcher: dispatcher,
		registry:   registry,
		timeout:    timeout,
		gate:       gate,
	}
}

// HandlePrompt runs the full protocol for one free-text instruction.
//
// Round 1 offers the operation catalog to the model. If the model
// answers directly, that text is the outcome. If it requests an
// operation, the dispatcher executes it and round 2 feeds the result
// back so the model can phrase the final answer — including when the
// result carries a recovered domain failure the model should explain.
// Fatal faults (timeouts, model errors, malformed or unknown
// operations) short-circuit with a typed *Error.
func (o *Orchestrator) HandlePrompt(ctx context.Context, prompt string) (*Outcome, error) {
	state := StateStart
	log := slog.With("component", "agent_orchestrator")

	fail := func(err error) (*Outcome, error) {
		state = StateFailed
		agentFailuresTotal.WithLabelValues(string(KindOf(err))).Inc()
		agentRequestsTotal.WithLabelValues("failed").Inc()
		log.Warn("Agent request failed", "state", state, "error", err)
		return nil, err
	}

	conversation := []llm.Message{
		{Role: llm.RoleSystem, Content: o.registry.SystemPrompt()},
		{Role: llm.RoleUser, Content: prompt},
	}

	state = StateAwaitFirstReply
	reply, err := o.complete(ctx, conversation, o.registry.Definitions(), roundFirst)
	if err != nil {
		return fail(err)
	}

	if reply.ToolCall == nil {
		state = StateDone
		agentRequestsTotal.WithLabelValues("done_direct").Inc()
		log.Debug("Agent answered directly", "state", state)
		return &Outcome{Response: reply.Content}, nil
	}

	state = StateAwaitToolResult
	call := reply.ToolCall
	log.Debug("Model requested operation", "state", state, "operation", call.Name)

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		return fail(Errorf(KindMalformedToolArguments,
			"operation %q argument payload is not well-formed JSON", call.Name))
	}

	result, err := o.dispatcher.Dispatch(ctx, call.Name, args)
	if err != nil {
		return fail(err)
	}

	serialized, err := json.Marshal(result)
	if err != nil {
		return fail(err)
	}

	// Backends that omit the call ID get a synthetic one, applied to the
	// assistant echo and the tool result alike so the pair stays linked.
	echoed := *call
	if echoed.ID == "" {
		echoed.ID = "call_0"
	}
	followUp := append(conversation,
		llm.Message{Role: llm.RoleAssistant, Content: reply.Content, ToolCall: &echoed},
		llm.Message{Role: llm.RoleTool, Name: call.Name, ToolCallID: echoed.ID, Content: string(serialized)},
	)

	state = StateAwaitSecondReply
	final, err := o.complete(ctx, followUp, nil, roundFollowUp)
	if err != nil {
		return fail(err)
	}

	state = StateDone
	agentRequestsTotal.WithLabelValues("done_tool").Inc()
	log.Debug("Agent request completed", "state", state, "operation", call.Name, "tool_status", result.Status)
	return &Outcome{Response: final.Content, ToolResult: result}, nil
}

// complete runs one bounded model round under the worker gate and maps
// transport failures to the agent error taxonomy.
func (o *Orchestrator) complete(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, round string) (*llm.Reply, error) {
	if o.gate != nil {
		if err := o.gate.Acquire(ctx, 1); err != nil {
			return nil, Errorf(KindLLMUnavailable, "request cancelled before the model call")
		}
		defer o.gate.Release(1)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	reply, err := o.client.Complete(callCtx, messages, tools)
	llmRoundDuration.WithLabelValues(round).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			if round == roundFollowUp {
				return nil, Errorf(KindLLMTimeout, "LLM follow-up request timed out after %s", o.timeout)
			}
			return nil, Errorf(KindLLMTimeout, "LLM request timed out after %s", o.timeout)
		}
		return nil, &Error{Kind: KindLLMUnavailable, Message: "LLM request failed", Err: err}
	}
	return reply, nil
}
