/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package orchestrate

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/virtualsre/virtualsre/internal/protocol"
	"github.com/virtualsre/virtualsre/internal/transport"
	"github.com/virtualsre/virtualsre/internal/truncate"
)

// DefaultMaxRounds caps decision rounds per user turn.
const DefaultMaxRounds = 5

// roundLimitMessage is the terminal answer when the round budget runs out.
// Hitting the budget is a defined outcome, not an error.
const roundLimitMessage = "I've made several tool calls but need to stop here."

// emptyAnswerMessage stands in for a decision with no text and no requests.
const emptyAnswerMessage = "I'm not sure how to help."

// EventKind identifies a progress event emitted during a turn.
type EventKind string

const (
	EventThinking   EventKind = "thinking"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventAnswer     EventKind = "answer"
	EventRoundLimit EventKind = "round_limit"
)

// Event reports turn progress to the UI layer.
type Event struct {
	Kind      EventKind
	Round     int
	Operation string
	Arguments map[string]any
	Content   string
}

// Loop runs the decide-then-execute cycle for one conversation.
type Loop struct {
	transport transport.Transport
	provider  Provider
	log       logr.Logger
	maxRounds int
	budget    int
	emit      func(Event)
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxRounds overrides the round ceiling.
func WithMaxRounds(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxRounds = n
		}
	}
}

// WithResultBudget overrides the serialized-size budget applied to each
// operation result.
func WithResultBudget(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.budget = n
		}
	}
}

// WithEmitter installs a progress event callback.
func WithEmitter(emit func(Event)) Option {
	return func(l *Loop) {
		l.emit = emit
	}
}

// NewLoop creates an orchestration loop over the given transport and
// provider binding.
func NewLoop(tr transport.Transport, provider Provider, log logr.Logger, opts ...Option) *Loop {
	l := &Loop{
		transport: tr,
		provider:  provider,
		log:       log.WithName("loop").WithValues("provider", provider.Name()),
		maxRounds: DefaultMaxRounds,
		budget:    truncate.DefaultBudget,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes one user turn and returns the final answer text. Operation
// failures inside a round become error-marker results the engine sees on
// the next round; reasoning-engine failures become the turn's answer text.
// On a completed turn only the user query and the final answer are
// persisted to history; the intermediate request/result messages live only
// within the turn.
func (l *Loop) Run(ctx context.Context, query string, history *History, operations []protocol.OperationDescriptor) string {
	working := append(history.Messages(), Message{Role: RoleUser, Content: query})

	for round := 1; round <= l.maxRounds; round++ {
		l.emitEvent(Event{Kind: EventThinking, Round: round})

		decision, err := l.provider.Decide(ctx, working, operations)
		if err != nil {
			l.log.Error(err, "reasoning engine call failed", "round", round)
			return fmt.Sprintf("Error: %v", err)
		}

		if len(decision.Calls) == 0 {
			answer := decision.Text
			if answer == "" {
				answer = emptyAnswerMessage
			}
			history.Append(
				Message{Role: RoleUser, Content: query},
				Message{Role: RoleAssistant, Content: answer},
			)
			l.emitEvent(Event{Kind: EventAnswer, Round: round, Content: answer})
			return answer
		}

		l.log.V(1).Info("executing operation requests", "round", round, "count", len(decision.Calls))

		// Providers that echo requests back need the raw decision in the
		// conversation before its results.
		working = append(working, Message{
			Role:    RoleAssistant,
			Content: decision.Text,
			Calls:   decision.Calls,
		})

		// Strictly sequential and in request order; a failure never skips
		// the requests after it.
		for _, call := range decision.Calls {
			l.emitEvent(Event{Kind: EventToolCall, Round: round, Operation: call.Name, Arguments: call.Arguments})

			bounded := truncate.Result(l.invoke(ctx, call), l.budget)

			l.emitEvent(Event{Kind: EventToolResult, Round: round, Operation: call.Name})
			working = append(working, Message{
				Role:    RoleTool,
				CallID:  call.ID,
				Content: bounded,
			})
		}
	}

	l.log.Info("round limit reached", "maxRounds", l.maxRounds)
	l.emitEvent(Event{Kind: EventRoundLimit, Round: l.maxRounds})
	history.Append(
		Message{Role: RoleUser, Content: query},
		Message{Role: RoleAssistant, Content: roundLimitMessage},
	)
	return roundLimitMessage
}

// invoke executes one operation request. Transport and remote failures are
// converted to error-marker data so the reasoning engine can react to them.
func (l *Loop) invoke(ctx context.Context, call Call) any {
	result, err := l.transport.Invoke(ctx, call.Name, call.Arguments)
	if err != nil {
		l.log.Info("operation failed", "operation", call.Name, "error", err.Error())
		return map[string]any{"error": err.Error()}
	}
	return result
}

func (l *Loop) emitEvent(ev Event) {
	if l.emit != nil {
		l.emit(ev)
	}
}
