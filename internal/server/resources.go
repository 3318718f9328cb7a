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

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// serializeItems converts addressable list items to their generic JSON
// form.
func serializeItems[T any, PT interface {
	*T
	runtime.Object
}](items []T) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		serialized, err := serialize(PT(&items[i]))
		if err != nil {
			return nil, err
		}
		out = append(out, serialized)
	}
	return out, nil
}

func (h *ClusterHandlers) listNamespaces(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	list, err := c.Typed.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	return serializeItems(list.Items)
}

func (h *ClusterHandlers) listNodes(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	list, err := c.Typed.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return serializeItems(list.Items)
}

func (h *ClusterHandlers) listDeployments(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	namespace := stringArg(args, argNamespace)
	list, err := c.Typed.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments in namespace %s: %w", namespace, err)
	}
	return serializeItems(list.Items)
}

func (h *ClusterHandlers) listStatefulSets(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	namespace := stringArg(args, argNamespace)
	list, err := c.Typed.AppsV1().StatefulSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list statefulsets in namespace %s: %w", namespace, err)
	}
	return serializeItems(list.Items)
}

func (h *ClusterHandlers) listDaemonSets(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	namespace := stringArg(args, argNamespace)
	list, err := c.Typed.AppsV1().DaemonSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list daemonsets in namespace %s: %w", namespace, err)
	}
	return serializeItems(list.Items)
}

func (h *ClusterHandlers) listJobs(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	namespace := stringArg(args, argNamespace)
	list, err := c.Typed.BatchV1().Jobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs in namespace %s: %w", namespace, err)
	}
	return serializeItems(list.Items)
}

func (h *ClusterHandlers) listCronJobs(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	namespace := stringArg(args, argNamespace)
	list, err := c.Typed.BatchV1().CronJobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list cronjobs in namespace %s: %w", namespace, err)
	}
	return serializeItems(list.Items)
}

func (h *ClusterHandlers) listServices(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	namespace := stringArg(args, argNamespace)
	list, err := c.Typed.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list services in namespace %s: %w", namespace, err)
	}
	return serializeItems(list.Items)
}

func (h *ClusterHandlers) listIngresses(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	namespace := stringArg(args, argNamespace)
	list, err := c.Typed.NetworkingV1().Ingresses(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list ingresses in namespace %s: %w", namespace, err)
	}
	return serializeItems(list.Items)
}

func (h *ClusterHandlers) listConfigMaps(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	namespace := stringArg(args, argNamespace)
	list, err := c.Typed.CoreV1().ConfigMaps(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list configmaps in namespace %s: %w", namespace, err)
	}
	return serializeItems(list.Items)
}

// listSecrets returns secret metadata with the payloads replaced by a
// placeholder. Values never leave the endpoint.
func (h *ClusterHandlers) listSecrets(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	namespace := stringArg(args, argNamespace)
	list, err := c.Typed.CoreV1().Secrets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets in namespace %s: %w", namespace, err)
	}

	out := make([]map[string]any, 0, len(list.Items))
	for i := range list.Items {
		serialized, err := serialize(&list.Items[i])
		if err != nil {
			return nil, err
		}
		if keys, ok := serialized["data"].(map[string]any); ok {
			serialized["data"] = fmt.Sprintf("<%d keys - data hidden for security>", len(keys))
		}
		delete(serialized, "stringData")
		out = append(out, serialized)
	}
	return out, nil
}

func (h *ClusterHandlers) listEvents(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}
	namespace := stringArg(args, argNamespace)
	list, err := c.Typed.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list events in namespace %s: %w", namespace, err)
	}

	out := make([]map[string]any, 0, len(list.Items))
	for _, ev := range list.Items {
		out = append(out, map[string]any{
			"type":    ev.Type,
			"reason":  ev.Reason,
			"message": ev.Message,
			"object":  fmt.Sprintf("%s/%s", ev.InvolvedObject.Kind, ev.InvolvedObject.Name),
			"count":   ev.Count,
			"age":     formatAge(ev.CreationTimestamp),
		})
	}
	return out, nil
}

// listContexts enumerates the kubeconfig contexts.
func (h *ClusterHandlers) listContexts(_ context.Context, _ map[string]any) (any, error) {
	infos, err := h.pool.Contexts()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names, nil
}
