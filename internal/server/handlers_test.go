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
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/virtualsre/virtualsre/internal/cluster"
)

// fakeSource serves a fixed client set for every context.
type fakeSource struct {
	clients  *cluster.Clients
	contexts []cluster.ContextInfo
	lastCtx  string
}

func (f *fakeSource) ClientsFor(contextName string) (*cluster.Clients, error) {
	f.lastCtx = contextName
	return f.clients, nil
}

func (f *fakeSource) Contexts() ([]cluster.ContextInfo, error) {
	return f.contexts, nil
}

func testPod(name, namespace, node string, phase corev1.PodPhase, restarts int32, ready bool) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			Namespace:         namespace,
			CreationTimestamp: metav1.NewTime(time.Now().Add(-3 * time.Hour)),
		},
		Spec: corev1.PodSpec{
			NodeName:   node,
			Containers: []corev1.Container{{Name: "app", Image: "app:latest"}},
		},
		Status: corev1.PodStatus{
			Phase: phase,
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "app", Ready: ready, RestartCount: restarts},
			},
		},
	}
}

func newHandlers(t *testing.T, objects ...runtime.Object) (*ClusterHandlers, *fakeSource) {
	t.Helper()

	scheme := runtime.NewScheme()
	listKinds := map[schema.GroupVersionResource]string{
		{Group: "networking.istio.io", Version: "v1beta1", Resource: "virtualservices"}:     "VirtualServiceList",
		{Group: "networking.istio.io", Version: "v1alpha3", Resource: "virtualservices"}:    "VirtualServiceList",
		{Group: "networking.istio.io", Version: "v1beta1", Resource: "destinationrules"}:    "DestinationRuleList",
		{Group: "networking.istio.io", Version: "v1alpha3", Resource: "destinationrules"}:   "DestinationRuleList",
		{Group: "networking.istio.io", Version: "v1beta1", Resource: "gateways"}:            "GatewayList",
		{Group: "networking.istio.io", Version: "v1alpha3", Resource: "gateways"}:           "GatewayList",
		{Group: "networking.istio.io", Version: "v1beta1", Resource: "serviceentries"}:      "ServiceEntryList",
		{Group: "networking.istio.io", Version: "v1alpha3", Resource: "serviceentries"}:     "ServiceEntryList",
		{Group: "security.istio.io", Version: "v1beta1", Resource: "peerauthentications"}:   "PeerAuthenticationList",
		{Group: "security.istio.io", Version: "v1beta1", Resource: "authorizationpolicies"}: "AuthorizationPolicyList",
		{Group: "gateway.networking.k8s.io", Version: "v1", Resource: "gateways"}:           "GatewayList",
		{Group: "gateway.networking.k8s.io", Version: "v1beta1", Resource: "gateways"}:      "GatewayList",
		{Group: "gateway.networking.k8s.io", Version: "v1alpha2", Resource: "gateways"}:     "GatewayList",
		{Group: "gateway.networking.k8s.io", Version: "v1", Resource: "httproutes"}:         "HTTPRouteList",
		{Group: "gateway.networking.k8s.io", Version: "v1beta1", Resource: "httproutes"}:    "HTTPRouteList",
		{Group: "gateway.networking.k8s.io", Version: "v1alpha2", Resource: "httproutes"}:   "HTTPRouteList",
	}

	var typedObjects, dynamicObjects []runtime.Object
	for _, obj := range objects {
		if _, ok := obj.(*unstructured.Unstructured); ok {
			dynamicObjects = append(dynamicObjects, obj)
		} else {
			typedObjects = append(typedObjects, obj)
		}
	}

	// Seed unstructured objects through the tracker with the resource from
	// listKinds: the tracker's own kind-to-resource guess pluralizes kinds
	// ending in "y" as "-ies" (Gateway -> gatewaies), which would store them
	// under a resource the handlers never list.
	dynamicClient := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(scheme, listKinds)
	for _, obj := range dynamicObjects {
		u := obj.(*unstructured.Unstructured)
		gvk := u.GroupVersionKind()
		seeded := false
		for gvr, listKind := range listKinds {
			if gvr.Group == gvk.Group && gvr.Version == gvk.Version && listKind == gvk.Kind+"List" {
				require.NoError(t, dynamicClient.Tracker().Create(gvr, u, u.GetNamespace()))
				seeded = true
				break
			}
		}
		if !seeded {
			require.NoError(t, dynamicClient.Tracker().Add(u))
		}
	}

	source := &fakeSource{
		clients: &cluster.Clients{
			Typed:   fake.NewClientset(typedObjects...),
			Dynamic: dynamicClient,
		},
		contexts: []cluster.ContextInfo{
			{Name: "prod", Cluster: "prod-cluster"},
			{Name: "staging", Cluster: "staging-cluster", Current: true},
		},
	}
	return NewClusterHandlers(source, logr.Discard()), source
}

func TestListPodsSummary(t *testing.T) {
	h, source := newHandlers(t,
		testPod("web-0", "default", "node-1", corev1.PodRunning, 2, true),
		testPod("worker-0", "jobs", "", corev1.PodPending, 0, false),
	)

	result, err := h.listPodsSummary(context.Background(), map[string]any{argClusterContext: "prod"}, "")
	require.NoError(t, err)
	assert.Equal(t, "prod", source.lastCtx)

	summaries := result.([]map[string]any)
	require.Len(t, summaries, 2)

	byName := map[string]map[string]any{}
	for _, s := range summaries {
		byName[s["name"].(string)] = s
	}

	web := byName["web-0"]
	assert.Equal(t, "Running", web["status"])
	assert.Equal(t, int32(2), web["restarts"])
	assert.Equal(t, "1/1", web["ready"])
	assert.Equal(t, "node-1", web["node"])
	assert.Equal(t, "3h", web["age"])

	worker := byName["worker-0"]
	assert.Equal(t, "Unscheduled", worker["node"])
	assert.Equal(t, "0/1", worker["ready"])
}

func TestListPodsSummaryScopedToNamespace(t *testing.T) {
	h, _ := newHandlers(t,
		testPod("web-0", "default", "node-1", corev1.PodRunning, 0, true),
		testPod("worker-0", "jobs", "node-2", corev1.PodRunning, 0, true),
	)

	result, err := h.listPodsSummary(context.Background(), map[string]any{}, "jobs")
	require.NoError(t, err)

	summaries := result.([]map[string]any)
	require.Len(t, summaries, 1)
	assert.Equal(t, "worker-0", summaries[0]["name"])
}

func TestListPodsDetailed(t *testing.T) {
	h, _ := newHandlers(t, testPod("web-0", "default", "node-1", corev1.PodRunning, 0, true))

	result, err := h.listPodsDetailed(context.Background(), map[string]any{}, "")
	require.NoError(t, err)

	pods := result.([]map[string]any)
	require.Len(t, pods, 1)

	metadata := pods[0]["metadata"].(map[string]any)
	assert.Equal(t, "web-0", metadata["name"])
	assert.Contains(t, pods[0], "spec")
	assert.Contains(t, pods[0], "status")
}

func TestListDeployments(t *testing.T) {
	replicas := int32(3)
	h, _ := newHandlers(t, &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "api", Namespace: "default"},
		Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
	})

	result, err := h.listDeployments(context.Background(), map[string]any{argNamespace: "default"})
	require.NoError(t, err)

	deployments := result.([]map[string]any)
	require.Len(t, deployments, 1)
	spec := deployments[0]["spec"].(map[string]any)
	assert.Equal(t, int64(3), spec["replicas"])
}

func TestListSecretsHidesData(t *testing.T) {
	h, _ := newHandlers(t, &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "db-creds", Namespace: "default"},
		Type:       corev1.SecretTypeOpaque,
		Data:       map[string][]byte{"user": []byte("admin"), "pass": []byte("hunter2")},
	})

	result, err := h.listSecrets(context.Background(), map[string]any{argNamespace: "default"})
	require.NoError(t, err)

	secrets := result.([]map[string]any)
	require.Len(t, secrets, 1)
	assert.Equal(t, "<2 keys - data hidden for security>", secrets[0]["data"])
	assert.NotContains(t, fmt.Sprintf("%v", secrets[0]), "hunter2")
}

func TestListEvents(t *testing.T) {
	h, _ := newHandlers(t, &corev1.Event{
		ObjectMeta:     metav1.ObjectMeta{Name: "evt-1", Namespace: "default"},
		Type:           "Warning",
		Reason:         "BackOff",
		Message:        "Back-off restarting failed container",
		Count:          7,
		InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "web-0"},
	})

	result, err := h.listEvents(context.Background(), map[string]any{argNamespace: "default"})
	require.NoError(t, err)

	events := result.([]map[string]any)
	require.Len(t, events, 1)
	assert.Equal(t, "Warning", events[0]["type"])
	assert.Equal(t, "Pod/web-0", events[0]["object"])
}

func TestGetPodLogs(t *testing.T) {
	h, _ := newHandlers(t, testPod("web-0", "default", "node-1", corev1.PodRunning, 0, true))

	result, err := h.podLogs(context.Background(), map[string]any{
		argPodName:   "web-0",
		argNamespace: "default",
		argTailLines: float64(50),
	})
	require.NoError(t, err)

	logs := result.(map[string]any)
	assert.Equal(t, "web-0", logs["pod_name"])
	assert.Equal(t, "default", logs["namespace"])
	assert.Equal(t, "default", logs["container"])
	assert.Equal(t, int64(50), logs["tail_lines"])
	assert.Equal(t, "fake logs", logs["logs"])
}

func TestListContexts(t *testing.T) {
	h, _ := newHandlers(t)

	result, err := h.listContexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"prod", "staging"}, result)
}

func istioVirtualService(name, namespace string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "networking.istio.io/v1beta1",
		"kind":       "VirtualService",
		"metadata":   map[string]any{"name": name, "namespace": namespace},
		"spec": map[string]any{
			"hosts": []any{name + ".example.com"},
		},
	}}
}

func TestListVirtualServices(t *testing.T) {
	h, _ := newHandlers(t, istioVirtualService("reviews", "default"))

	result, err := h.listVirtualServices(context.Background(), map[string]any{argNamespace: "default"})
	require.NoError(t, err)

	items := result.([]map[string]any)
	require.Len(t, items, 1)
	metadata := items[0]["metadata"].(map[string]any)
	assert.Equal(t, "reviews", metadata["name"])
}

func TestListGatewaysSummary(t *testing.T) {
	gw := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "gateway.networking.k8s.io/v1",
		"kind":       "Gateway",
		"metadata":   map[string]any{"name": "edge", "namespace": "default"},
		"spec": map[string]any{
			"gatewayClassName": "istio",
			"listeners": []any{
				map[string]any{"name": "http", "port": int64(80)},
				map[string]any{"name": "https", "port": int64(443)},
			},
		},
		"status": map[string]any{
			"addresses": []any{map[string]any{"type": "IPAddress", "value": "10.0.0.1"}},
			"conditions": []any{
				map[string]any{"type": "Accepted", "status": "True"},
			},
		},
	}}
	h, _ := newHandlers(t, gw)

	result, err := h.listGatewaysSummary(context.Background(), map[string]any{argNamespace: "default"})
	require.NoError(t, err)

	summaries := result.([]map[string]any)
	require.Len(t, summaries, 1)
	assert.Equal(t, "edge", summaries[0]["name"])
	assert.Equal(t, "istio", summaries[0]["gateway_class"])
	assert.Equal(t, 2, summaries[0]["listeners"])
	assert.Equal(t, []string{"10.0.0.1"}, summaries[0]["addresses"])
	assert.Equal(t, "Ready", summaries[0]["status"])
}

func TestListHTTPRoutesSummary(t *testing.T) {
	route := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "gateway.networking.k8s.io/v1",
		"kind":       "HTTPRoute",
		"metadata":   map[string]any{"name": "app-route", "namespace": "default"},
		"spec": map[string]any{
			"hostnames":  []any{"app.example.com"},
			"parentRefs": []any{map[string]any{"name": "edge"}},
			"rules":      []any{map[string]any{}},
		},
	}}
	h, _ := newHandlers(t, route)

	result, err := h.listHTTPRoutesSummary(context.Background(), map[string]any{argNamespace: "default"})
	require.NoError(t, err)

	summaries := result.([]map[string]any)
	require.Len(t, summaries, 1)
	assert.Equal(t, "app-route", summaries[0]["name"])
	assert.Equal(t, []string{"app.example.com"}, summaries[0]["hostnames"])
	assert.Equal(t, []string{"edge"}, summaries[0]["parents"])
	assert.Equal(t, 1, summaries[0]["rules"])
}

func TestOperationsCatalog(t *testing.T) {
	h, _ := newHandlers(t)

	registry := NewRegistry()
	registry.MustRegister(h.Operations()...)

	descriptors := registry.Descriptors()
	names := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		names[d.Name] = true
		assert.NotEmpty(t, d.Description, d.Name)
		assert.NotEmpty(t, d.InputSchema, d.Name)
	}

	for _, expected := range []string{
		"list_all_pods_summary", "list_all_pods",
		"list_pods_in_namespace_summary", "list_pods_in_namespace",
		"get_pod_logs", "list_namespaces", "list_nodes", "list_available_contexts",
		"list_deployments_in_namespace", "list_services_in_namespace",
		"list_statefulsets_in_namespace", "list_daemonsets_in_namespace",
		"list_jobs_in_namespace", "list_cronjobs_in_namespace",
		"list_ingresses_in_namespace", "list_configmaps_in_namespace",
		"list_secrets_in_namespace", "list_events_in_namespace",
		"list_istio_virtual_services", "list_istio_destination_rules",
		"list_istio_gateways", "list_istio_service_entries",
		"list_istio_peer_authentications", "list_istio_authorization_policies",
		"list_gateways_summary", "list_gateways",
		"list_httproutes_summary", "list_httproutes",
	} {
		assert.True(t, names[expected], "missing operation %s", expected)
	}
}

func TestNamespacedSchemaRequiresNamespace(t *testing.T) {
	h, _ := newHandlers(t)

	registry := NewRegistry()
	registry.MustRegister(h.Operations()...)

	_, err := registry.Call(context.Background(), "list_deployments_in_namespace", map[string]any{})
	var invalid *InvalidArgsError
	require.ErrorAs(t, err, &invalid)
}
