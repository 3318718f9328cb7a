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

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// listPodsSummary returns the lightweight per-pod view for cluster-wide or
// per-namespace queries. An empty namespace selects all namespaces.
func (h *ClusterHandlers) listPodsSummary(ctx context.Context, args map[string]any, namespace string) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}

	pods, err := c.Typed.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	summaries := make([]map[string]any, 0, len(pods.Items))
	for i := range pods.Items {
		summaries = append(summaries, podSummary(&pods.Items[i]))
	}
	return summaries, nil
}

// listPodsDetailed returns full pod objects. An empty namespace selects all
// namespaces.
func (h *ClusterHandlers) listPodsDetailed(ctx context.Context, args map[string]any, namespace string) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}

	pods, err := c.Typed.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	out := make([]map[string]any, 0, len(pods.Items))
	for i := range pods.Items {
		serialized, err := serialize(&pods.Items[i])
		if err != nil {
			return nil, err
		}
		out = append(out, serialized)
	}
	return out, nil
}

// podSummary reduces a pod to the fields an overview needs.
func podSummary(pod *corev1.Pod) map[string]any {
	restarts := int32(0)
	ready := 0
	for _, cs := range pod.Status.ContainerStatuses {
		restarts += cs.RestartCount
		if cs.Ready {
			ready++
		}
	}

	status := string(pod.Status.Phase)
	if status == "" {
		status = "Unknown"
	}
	node := pod.Spec.NodeName
	if node == "" {
		node = "Unscheduled"
	}

	return map[string]any{
		"name":      pod.Name,
		"namespace": pod.Namespace,
		"status":    status,
		"restarts":  restarts,
		"age":       formatAge(pod.CreationTimestamp),
		"node":      node,
		"ready":     fmt.Sprintf("%d/%d", ready, len(pod.Spec.Containers)),
	}
}

// podLogs retrieves the tail of one pod's logs.
func (h *ClusterHandlers) podLogs(ctx context.Context, args map[string]any) (any, error) {
	c, err := h.clients(args)
	if err != nil {
		return nil, err
	}

	podName := stringArg(args, argPodName)
	namespace := stringArg(args, argNamespace)
	container := stringArg(args, argContainer)
	tailLines := intArg(args, argTailLines, 100)

	opts := &corev1.PodLogOptions{TailLines: &tailLines}
	if container != "" {
		opts.Container = container
	}

	raw, err := c.Typed.CoreV1().Pods(namespace).GetLogs(podName, opts).Do(ctx).Raw()
	if err != nil {
		return nil, fmt.Errorf("failed to get logs for pod %s: %w", podName, err)
	}

	containerLabel := container
	if containerLabel == "" {
		containerLabel = "default"
	}
	return map[string]any{
		"pod_name":   podName,
		"namespace":  namespace,
		"container":  containerLabel,
		"tail_lines": tailLines,
		"logs":       string(raw),
	}, nil
}
