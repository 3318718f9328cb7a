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

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Call is one operation request carried by an assistant decision.
type Call struct {
	// ID is the provider-assigned identifier tying a result back to the
	// request.
	ID string

	// Name is the operation to invoke.
	Name string

	// Arguments are the operation arguments.
	Arguments map[string]any
}

// Message is one entry of a conversation in provider-neutral form. The
// provider bindings convert it to their own wire shapes.
type Message struct {
	Role    Role
	Content string

	// Calls are the operation requests of an assistant message.
	Calls []Call

	// CallID keys a tool-result message to one prior request.
	CallID string
}

// DefaultHistoryLimit caps retained conversation entries, the system entry
// included.
const DefaultHistoryLimit = 21

// History is the ordered conversation retained across turns. Once the entry
// count exceeds the limit the oldest entries are pruned, except that a
// leading system entry is always retained.
type History struct {
	limit    int
	messages []Message
}

// NewHistory creates a history seeded with a system prompt. An empty system
// prompt seeds an empty history. A limit of zero or less selects
// DefaultHistoryLimit.
func NewHistory(system string, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	h := &History{limit: limit}
	if system != "" {
		h.messages = append(h.messages, Message{Role: RoleSystem, Content: system})
	}
	return h
}

// Messages returns a copy of the retained entries in turn order.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	return len(h.messages)
}

// Append records messages and prunes the history back under its limit.
func (h *History) Append(msgs ...Message) {
	h.messages = append(h.messages, msgs...)
	h.trim()
}

// Clear drops everything except a leading system entry.
func (h *History) Clear() {
	if len(h.messages) > 0 && h.messages[0].Role == RoleSystem {
		h.messages = h.messages[:1]
		return
	}
	h.messages = nil
}

func (h *History) trim() {
	if len(h.messages) <= h.limit {
		return
	}
	if h.messages[0].Role == RoleSystem {
		kept := make([]Message, 0, h.limit)
		kept = append(kept, h.messages[0])
		kept = append(kept, h.messages[len(h.messages)-(h.limit-1):]...)
		h.messages = kept
		return
	}
	h.messages = h.messages[len(h.messages)-h.limit:]
}
