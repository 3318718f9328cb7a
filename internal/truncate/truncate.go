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

// Package truncate bounds the serialized size of operation results before
// they are fed back to the reasoning engine. Sequences over budget keep a
// representative sample instead of an arbitrary byte cut.
package truncate

import (
	"encoding/json"
	"fmt"
)

// DefaultBudget is the default serialized-character budget. Summary
// operations keep results well under it even on large clusters.
const DefaultBudget = 200000

// maxSampleItems caps the number of sequence elements kept in a summary.
const maxSampleItems = 50

// Result serializes a value and caps it at budget characters. A budget of
// zero or less selects DefaultBudget. The returned string never exceeds the
// budget beyond the fixed overhead of the wrapper object.
func Result(value any, budget int) string {
	if budget <= 0 {
		budget = DefaultBudget
	}

	serialized := marshal(value)
	if len(serialized) <= budget {
		return serialized
	}

	if items, ok := asSequence(value); ok {
		return summarizeSequence(items, budget)
	}

	return wrapTruncated(serialized, budget)
}

// summarizeSequence replaces an oversized sequence with a summary object
// holding the first maxSampleItems elements.
func summarizeSequence(items []any, budget int) string {
	sampleSize := len(items)
	if sampleSize > maxSampleItems {
		sampleSize = maxSampleItems
	}

	summary := map[string]any{
		"total_items": len(items),
		"showing":     sampleSize,
		"note": fmt.Sprintf("Showing first %d of %d items. Use namespace-specific queries for more.",
			sampleSize, len(items)),
		"sample_items": items[:sampleSize],
	}

	serialized := marshal(summary)
	if len(serialized) <= budget {
		return serialized
	}
	// Individual elements can be large enough that even the sample blows
	// the budget; fall back to a hard cut.
	return serialized[:budget]
}

// wrapTruncated hard-truncates a serialized value and marks it as partial.
func wrapTruncated(serialized string, budget int) string {
	wrapped := map[string]any{
		"warning":      "Result truncated due to size. Consider using summary operations or namespace-specific queries.",
		"partial_data": serialized[:budget],
	}
	return marshal(wrapped)
}

// marshal produces the canonical JSON form, coercing unserializable values
// to their string representation rather than failing.
func marshal(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		data, err = json.Marshal(fmt.Sprintf("%v", value))
		if err != nil {
			return fmt.Sprintf("%q", fmt.Sprintf("%v", value))
		}
	}
	return string(data)
}

// asSequence reports whether the value is a JSON sequence.
func asSequence(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []map[string]any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = item
		}
		return items, true
	default:
		return nil, false
	}
}
