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
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Custom resource groups served through the dynamic client.
const (
	istioNetworkingGroup = "networking.istio.io"
	istioSecurityGroup   = "security.istio.io"
	gatewayAPIGroup      = "gateway.networking.k8s.io"
)

// API versions tried in order, newest first, to cover mixed mesh installs.
var (
	istioVersions      = []string{"v1beta1", "v1alpha3"}
	istioAuthVersions  = []string{"v1beta1"}
	gatewayAPIVersions = []string{"v1", "v1beta1", "v1alpha2"}
)

// listCustom lists a namespaced custom resource, falling back through API
// versions until one is served. A group that is absent entirely reports
// the CRD as not installed.
func (h *ClusterHandlers) listCustom(ctx context.Context, args map[string]any, group, resource string, versions []string) (*unstructured.UnstructuredList, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	namespace := stringArg(args, argNamespace)

	for _, version := range versions {
		gvr := schema.GroupVersionResource{Group: group, Version: version, Resource: resource}
		list, err := c.Dynamic.Resource(gvr).Namespace(namespace).List(ctx, metav1.ListOptions{})
		if err == nil {
			return list, nil
		}
		if apierrors.IsNotFound(err) {
			continue
		}
		return nil, fmt.Errorf("failed to list %s in namespace %s: %w", resource, namespace, err)
	}

	return nil, fmt.Errorf("%s.%s CRD not found; the mesh component may not be installed", resource, group)
}

func (h *ClusterHandlers) listCustomItems(ctx context.Context, args map[string]any, group, resource string, versions []string) (any, error) {
	list, err := h.listCustom(ctx, args, group, resource, versions)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(list.Items))
	for _, item := range list.Items {
		items = append(items, item.Object)
	}
	return items, nil
}

func (h *ClusterHandlers) listVirtualServices(ctx context.Context, args map[string]any) (any, error) {
	return h.listCustomItems(ctx, args, istioNetworkingGroup, "virtualservices", istioVersions)
}

func (h *ClusterHandlers) listDestinationRules(ctx context.Context, args map[string]any) (any, error) {
	return h.listCustomItems(ctx, args, istioNetworkingGroup, "destinationrules", istioVersions)
}

func (h *ClusterHandlers) listIstioGateways(ctx context.Context, args map[string]any) (any, error) {
	return h.listCustomItems(ctx, args, istioNetworkingGroup, "gateways", istioVersions)
}

func (h *ClusterHandlers) listServiceEntries(ctx context.Context, args map[string]any) (any, error) {
	return h.listCustomItems(ctx, args, istioNetworkingGroup, "serviceentries", istioVersions)
}

func (h *ClusterHandlers) listPeerAuthentications(ctx context.Context, args map[string]any) (any, error) {
	return h.listCustomItems(ctx, args, istioSecurityGroup, "peerauthentications", istioAuthVersions)
}

func (h *ClusterHandlers) listAuthorizationPolicies(ctx context.Context, args map[string]any) (any, error) {
	return h.listCustomItems(ctx, args, istioSecurityGroup, "authorizationpolicies", istioAuthVersions)
}

func (h *ClusterHandlers) listGatewaysDetailed(ctx context.Context, args map[string]any) (any, error) {
	return h.listCustomItems(ctx, args, gatewayAPIGroup, "gateways", gatewayAPIVersions)
}

func (h *ClusterHandlers) listHTTPRoutesDetailed(ctx context.Context, args map[string]any) (any, error) {
	return h.listCustomItems(ctx, args, gatewayAPIGroup, "httproutes", gatewayAPIVersions)
}

// listGatewaysSummary reduces Gateway API gateways to name, class,
// listener count, addresses, and readiness.
func (h *ClusterHandlers) listGatewaysSummary(ctx context.Context, args map[string]any) (any, error) {
	list, err := h.listCustom(ctx, args, gatewayAPIGroup, "gateways", gatewayAPIVersions)
	if err != nil {
		return nil, err
	}

	summaries := make([]map[string]any, 0, len(list.Items))
	for _, gw := range list.Items {
		listeners, _, _ := unstructured.NestedSlice(gw.Object, "spec", "listeners")
		className, _, _ := unstructured.NestedString(gw.Object, "spec", "gatewayClassName")

		var addresses []string
		rawAddresses, _, _ := unstructured.NestedSlice(gw.Object, "status", "addresses")
		for _, raw := range rawAddresses {
			if addr, ok := raw.(map[string]any); ok {
				if value, ok := addr["value"].(string); ok {
					addresses = append(addresses, value)
				}
			}
		}

		summaries = append(summaries, map[string]any{
			"name":          gw.GetName(),
			"namespace":     gw.GetNamespace(),
			"gateway_class": className,
			"listeners":     len(listeners),
			"addresses":     addresses,
			"status":        readinessFromConditions(gw.Object),
		})
	}
	return summaries, nil
}

// listHTTPRoutesSummary reduces HTTPRoutes to name, hostnames, parent
// gateways, and rule count.
func (h *ClusterHandlers) listHTTPRoutesSummary(ctx context.Context, args map[string]any) (any, error) {
	list, err := h.listCustom(ctx, args, gatewayAPIGroup, "httproutes", gatewayAPIVersions)
	if err != nil {
		return nil, err
	}

	summaries := make([]map[string]any, 0, len(list.Items))
	for _, route := range list.Items {
		hostnames, _, _ := unstructured.NestedStringSlice(route.Object, "spec", "hostnames")
		rules, _, _ := unstructured.NestedSlice(route.Object, "spec", "rules")

		var parents []string
		rawParents, _, _ := unstructured.NestedSlice(route.Object, "spec", "parentRefs")
		for _, raw := range rawParents {
			if ref, ok := raw.(map[string]any); ok {
				if name, ok := ref["name"].(string); ok {
					parents = append(parents, name)
				}
			}
		}

		summaries = append(summaries, map[string]any{
			"name":      route.GetName(),
			"namespace": route.GetNamespace(),
			"hostnames": hostnames,
			"parents":   parents,
			"rules":     len(rules),
		})
	}
	return summaries, nil
}

// readinessFromConditions reads the Accepted or Ready condition of a
// Gateway status block.
func readinessFromConditions(obj map[string]any) string {
	conditions, _, _ := unstructured.NestedSlice(obj, "status", "conditions")
	for _, raw := range conditions {
		cond, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		condType, _ := cond["type"].(string)
		if condType != "Accepted" && condType != "Ready" {
			continue
		}
		if status, _ := cond["status"].(string); status == "True" {
			return "Ready"
		}
		if reason, _ := cond["reason"].(string); reason != "" {
			return reason
		}
		return "NotReady"
	}
	return "Unknown"
}
