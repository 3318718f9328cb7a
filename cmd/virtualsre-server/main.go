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

// The virtualsre-server binary serves the cluster operation catalog over
// one of three carriers: line-delimited JSON on the standard streams,
// server-sent events, or plain HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/virtualsre/virtualsre/internal/cluster"
	"github.com/virtualsre/virtualsre/internal/server"
	"github.com/virtualsre/virtualsre/pkg/logging"
)

// flags groups all CLI flags for the server binary.
type flags struct {
	kubeconfig   string
	context      string
	listContexts bool
	transport    string
	host         string
	port         int
	apiKey       string
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.kubeconfig, "kubeconfig", "", "Path to the kubeconfig file (default: $KUBECONFIG, then ~/.kube/config)")
	flag.StringVar(&f.context, "context", "", "Kubeconfig context to use (default: current-context)")
	flag.BoolVar(&f.listContexts, "list-contexts", false, "List available kubeconfig contexts and exit")
	flag.StringVar(&f.transport, "transport", "stdio", "Carrier to serve on: stdio, sse, or http")
	flag.StringVar(&f.host, "host", "0.0.0.0", "Listen host for the sse and http carriers")
	flag.IntVar(&f.port, "port", 8765, "Listen port for the sse and http carriers")
	flag.StringVar(&f.apiKey, "api-key", "", "Bearer token required on the operation routes (default: $VIRTUALSRE_API_KEY)")
	flag.Parse()

	if f.apiKey == "" {
		f.apiKey = os.Getenv("VIRTUALSRE_API_KEY")
	}
	return f
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	f := parseFlags()

	// On the stdio carrier the protocol owns stdout, so logs go to stderr.
	var log logr.Logger
	var syncLog func()
	var err error
	if f.transport == "stdio" {
		log, syncLog, err = logging.NewStderrLogger()
	} else {
		log, syncLog, err = logging.NewLogger()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer syncLog()

	if f.listContexts {
		return printContexts(f.kubeconfig)
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	pool := cluster.NewPool(cluster.Config{
		KubeconfigPath: f.kubeconfig,
		Context:        f.context,
	})

	registry := server.NewRegistry()
	handlers := server.NewClusterHandlers(pool, log)
	registry.MustRegister(handlers.Operations()...)

	metrics := server.NewMetrics(nil)
	dispatcher := server.NewDispatcher(registry, metrics, log)

	switch f.transport {
	case "stdio":
		log.Info("serving on standard streams", "operations", len(registry.Descriptors()))
		return server.ServeStdio(ctx, dispatcher, os.Stdin, os.Stdout, log)
	case "sse", "http":
		addr := fmt.Sprintf("%s:%d", f.host, f.port)
		srv := server.NewHTTPServer(dispatcher, server.HTTPServerConfig{
			Addr:   addr,
			APIKey: f.apiKey,
		}, log)
		log.Info("serving over HTTP", "addr", addr, "carrier", f.transport,
			"operations", len(registry.Descriptors()), "auth", f.apiKey != "")
		return srv.ListenAndServe()
	default:
		return fmt.Errorf("unknown transport %q: expected stdio, sse, or http", f.transport)
	}
}

func printContexts(kubeconfig string) error {
	infos, err := cluster.ReadContexts(kubeconfig)
	if err != nil {
		return err
	}
	for _, info := range infos {
		marker := " "
		if info.Current {
			marker = "*"
		}
		fmt.Printf("%s %s (cluster: %s)\n", marker, info.Name, info.Cluster)
	}
	return nil
}
