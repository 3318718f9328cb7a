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
	"context"
)

// Operations builds the full operation catalog over the handler set.
// Summary variants exist for the high-cardinality resources so the
// reasoning engine can stay within result budgets on large clusters.
func (h *ClusterHandlers) Operations() []Operation {
	logsSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			argPodName: map[string]any{
				"type":        "string",
				"description": "Name of the pod",
			},
			argNamespace: map[string]any{
				"type":        "string",
				"description": "Namespace containing the pod",
			},
			argContainer: map[string]any{
				"type":        "string",
				"description": "Container name; defaults to the first container",
			},
			argTailLines: map[string]any{
				"type":        "integer",
				"description": "Number of lines from the end of the logs (default 100)",
			},
			argClusterContext: map[string]any{
				"type":        "string",
				"description": "Kubeconfig context to query; defaults to the current context",
			},
		},
		"required": []any{argPodName, argNamespace},
	}

	return []Operation{
		{
			Name:        "list_all_pods_summary",
			Description: "List all pods across all namespaces with summary information: name, namespace, status, restarts, age, node, ready count. Preferred for cluster-wide pod queries.",
			InputSchema: schemaContextOnly(),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return h.listPodsSummary(ctx, args, "")
			},
		},
		{
			Name:        "list_all_pods",
			Description: "List all pods across all namespaces with full specifications. Use only when complete pod detail is explicitly needed; prefer list_all_pods_summary otherwise.",
			InputSchema: schemaContextOnly(),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return h.listPodsDetailed(ctx, args, "")
			},
		},
		{
			Name:        "list_pods_in_namespace_summary",
			Description: "List pods in one namespace with summary information: name, status, restarts, age, node, ready count.",
			InputSchema: schemaNamespaced(),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return h.listPodsSummary(ctx, args, stringArg(args, argNamespace))
			},
		},
		{
			Name:        "list_pods_in_namespace",
			Description: "List pods in one namespace with full specifications. Prefer the summary variant unless complete detail is needed.",
			InputSchema: schemaNamespaced(),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return h.listPodsDetailed(ctx, args, stringArg(args, argNamespace))
			},
		},
		{
			Name:        "get_pod_logs",
			Description: "Get the tail of a pod's container logs.",
			InputSchema: logsSchema,
			Handler:     h.podLogs,
		},
		{
			Name:        "list_namespaces",
			Description: "List all namespaces in the cluster.",
			InputSchema: schemaContextOnly(),
			Handler:     h.listNamespaces,
		},
		{
			Name:        "list_nodes",
			Description: "List all nodes with capacity, conditions, and version information.",
			InputSchema: schemaContextOnly(),
			Handler:     h.listNodes,
		},
		{
			Name:        "list_available_contexts",
			Description: "List the cluster contexts available in the kubeconfig file.",
			InputSchema: schemaNoArgs(),
			Handler:     h.listContexts,
		},
		{
			Name:        "list_deployments_in_namespace",
			Description: "List deployments in a namespace with replicas, strategy, and rollout status.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listDeployments,
		},
		{
			Name:        "list_statefulsets_in_namespace",
			Description: "List statefulsets in a namespace.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listStatefulSets,
		},
		{
			Name:        "list_daemonsets_in_namespace",
			Description: "List daemonsets in a namespace.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listDaemonSets,
		},
		{
			Name:        "list_jobs_in_namespace",
			Description: "List jobs in a namespace.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listJobs,
		},
		{
			Name:        "list_cronjobs_in_namespace",
			Description: "List cronjobs in a namespace.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listCronJobs,
		},
		{
			Name:        "list_services_in_namespace",
			Description: "List services in a namespace with types, ports, and load balancer endpoints.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listServices,
		},
		{
			Name:        "list_ingresses_in_namespace",
			Description: "List ingresses in a namespace.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listIngresses,
		},
		{
			Name:        "list_configmaps_in_namespace",
			Description: "List configmaps in a namespace.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listConfigMaps,
		},
		{
			Name:        "list_secrets_in_namespace",
			Description: "List secret metadata in a namespace. Secret values are never returned.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listSecrets,
		},
		{
			Name:        "list_events_in_namespace",
			Description: "List recent events in a namespace with type, reason, message, and involved object.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listEvents,
		},
		{
			Name:        "list_istio_virtual_services",
			Description: "List Istio VirtualServices in a namespace: routing rules, traffic splitting, retries, timeouts.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listVirtualServices,
		},
		{
			Name:        "list_istio_destination_rules",
			Description: "List Istio DestinationRules in a namespace: subsets, load balancing, connection pools.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listDestinationRules,
		},
		{
			Name:        "list_istio_gateways",
			Description: "List Istio Gateways in a namespace.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listIstioGateways,
		},
		{
			Name:        "list_istio_service_entries",
			Description: "List Istio ServiceEntries in a namespace.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listServiceEntries,
		},
		{
			Name:        "list_istio_peer_authentications",
			Description: "List Istio PeerAuthentications in a namespace.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listPeerAuthentications,
		},
		{
			Name:        "list_istio_authorization_policies",
			Description: "List Istio AuthorizationPolicies in a namespace.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listAuthorizationPolicies,
		},
		{
			Name:        "list_gateways_summary",
			Description: "List Gateway API Gateways in a namespace with summary information: class, listener count, addresses, readiness.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listGatewaysSummary,
		},
		{
			Name:        "list_gateways",
			Description: "List Gateway API Gateways in a namespace with full specifications.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listGatewaysDetailed,
		},
		{
			Name:        "list_httproutes_summary",
			Description: "List Gateway API HTTPRoutes in a namespace with summary information: hostnames, parent gateways, rule count.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listHTTPRoutesSummary,
		},
		{
			Name:        "list_httproutes",
			Description: "List Gateway API HTTPRoutes in a namespace with full specifications.",
			InputSchema: schemaNamespaced(),
			Handler:     h.listHTTPRoutesDetailed,
		},
	}
}
