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

package server

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/virtualsre/virtualsre/internal/cluster"
)

// ClientSource resolves per-context clients; satisfied by *cluster.Pool.
type ClientSource interface {
	ClientsFor(contextName string) (*cluster.Clients, error)
	Contexts() ([]cluster.ContextInfo, error)
}

// ClusterHandlers implements the cluster operations over a client pool.
type ClusterHandlers struct {
	pool ClientSource
	log  logr.Logger
}

// NewClusterHandlers creates the handler set.
func NewClusterHandlers(pool ClientSource, log logr.Logger) *ClusterHandlers {
	return &ClusterHandlers{pool: pool, log: log.WithName("cluster")}
}

// Argument keys shared across operations.
const (
	argClusterContext = "cluster_context"
	argNamespace      = "namespace"
	argPodName        = "pod_name"
	argContainer      = "container"
	argTailLines      = "tail_lines"
)

// clients resolves the clients for the context named in the arguments, or
// the default context.
func (h *ClusterHandlers) clients(args map[string]any) (*cluster.Clients, error) {
	contextName, _ := args[argClusterContext].(string)
	return h.pool.ClientsFor(contextName)
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg reads a numeric argument; JSON numbers decode as float64.
func intArg(args map[string]any, key string, fallback int64) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return fallback
	}
}

// serialize converts a typed API object to its generic JSON form.
func serialize(obj runtime.Object) (map[string]any, error) {
	out, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize object: %w", err)
	}
	return out, nil
}

// formatAge renders a creation timestamp the way kubectl does: days, then
// hours, then minutes.
func formatAge(created metav1.Time) string {
	if created.IsZero() {
		return ""
	}
	delta := time.Since(created.Time)
	if days := int(delta.Hours()) / 24; days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	if hours := int(delta.Hours()); hours > 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", int(delta.Minutes()))
}

// Schema fragments shared by the operation descriptors.

func schemaNoArgs() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func schemaContextOnly() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			argClusterContext: map[string]any{
				"type":        "string",
				"description": "Kubeconfig context to query; defaults to the current context",
			},
		},
	}
}

func schemaNamespaced() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			argNamespace: map[string]any{
				"type":        "string",
				"description": "Namespace to query",
			},
			argClusterContext: map[string]any{
				"type":        "string",
				"description": "Kubeconfig context to query; defaults to the current context",
			},
		},
		"required": []any{argNamespace},
	}
}
