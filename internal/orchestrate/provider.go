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

// Package orchestrate drives the conversation between a reasoning engine
// and the operation server: it asks the engine for a decision, executes the
// operation requests the decision carries, and repeats until the engine
// produces a final answer or the round budget runs out.
package orchestrate

import (
	"context"

	"github.com/virtualsre/virtualsre/internal/protocol"
)

// Decision is one reasoning-engine response: either final answer text, or
// one or more operation requests to execute before asking again.
type Decision struct {
	// Text is the assistant's text content. It is the final answer when
	// Calls is empty.
	Text string

	// Calls are the requested operation invocations, in request order.
	Calls []Call
}

// Provider is one binding of the orchestration loop to a reasoning-engine
// wire protocol. Bindings differ only in how a decision is fetched and how
// requests are represented on the wire; the loop semantics are shared.
type Provider interface {
	// Name identifies the binding in logs.
	Name() string

	// Decide sends the conversation and the available operations to the
	// reasoning engine and returns its decision.
	Decide(ctx context.Context, messages []Message, operations []protocol.OperationDescriptor) (*Decision, error)
}
