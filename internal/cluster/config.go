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

// Package cluster resolves kubeconfig contexts and builds the Kubernetes
// clients the operation handlers run against.
package cluster

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Config locates a kubeconfig and the context to operate in.
type Config struct {
	// KubeconfigPath is the kubeconfig file. Empty selects the KUBECONFIG
	// environment variable, then ~/.kube/config.
	KubeconfigPath string

	// Context is the kubeconfig context. Empty selects the file's
	// current-context.
	Context string
}

// Clients bundles the typed and dynamic clients for one context.
type Clients struct {
	Typed   kubernetes.Interface
	Dynamic dynamic.Interface
}

// Pool builds and caches per-context clients.
type Pool struct {
	config Config

	mu      sync.Mutex
	clients map[string]*Clients
}

// NewPool creates a client pool for the given configuration.
func NewPool(config Config) *Pool {
	config.KubeconfigPath = resolveKubeconfigPath(config.KubeconfigPath)
	return &Pool{
		config:  config,
		clients: make(map[string]*Clients),
	}
}

// ClientsFor returns the clients for a context, building them on first use.
// An empty context selects the pool's configured default.
func (p *Pool) ClientsFor(contextName string) (*Clients, error) {
	if contextName == "" {
		contextName = p.config.Context
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[contextName]; ok {
		return c, nil
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: p.config.KubeconfigPath},
		&clientcmd.ConfigOverrides{CurrentContext: contextName},
	).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	typed, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	dyn, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	c := &Clients{Typed: typed, Dynamic: dyn}
	p.clients[contextName] = c
	return c, nil
}

// kubeconfigFile is the subset of the kubeconfig format needed to
// enumerate contexts.
type kubeconfigFile struct {
	CurrentContext string `yaml:"current-context"`
	Contexts       []struct {
		Name    string `yaml:"name"`
		Context struct {
			Cluster   string `yaml:"cluster"`
			Namespace string `yaml:"namespace"`
		} `yaml:"context"`
	} `yaml:"contexts"`
}

// ContextInfo describes one kubeconfig context.
type ContextInfo struct {
	Name      string
	Cluster   string
	Namespace string
	Current   bool
}

// Contexts lists the contexts defined in the configured kubeconfig, sorted
// by name.
func (p *Pool) Contexts() ([]ContextInfo, error) {
	return ReadContexts(p.config.KubeconfigPath)
}

// ReadContexts lists the contexts defined in a kubeconfig file.
func ReadContexts(path string) ([]ContextInfo, error) {
	path = resolveKubeconfigPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read kubeconfig %s: %w", path, err)
	}

	var file kubeconfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse kubeconfig %s: %w", path, err)
	}

	infos := make([]ContextInfo, 0, len(file.Contexts))
	for _, c := range file.Contexts {
		infos = append(infos, ContextInfo{
			Name:      c.Name,
			Cluster:   c.Context.Cluster,
			Namespace: c.Context.Namespace,
			Current:   c.Name == file.CurrentContext,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func resolveKubeconfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("KUBECONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return clientcmd.RecommendedHomeFile
	}
	return filepath.Join(home, ".kube", "config")
}
