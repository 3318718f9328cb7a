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

// The virtualsre-chat binary is an interactive console that answers
// cluster questions by driving the operations endpoint through a
// reasoning engine.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/virtualsre/virtualsre/internal/orchestrate"
	"github.com/virtualsre/virtualsre/internal/protocol"
	"github.com/virtualsre/virtualsre/internal/transport"
	"github.com/virtualsre/virtualsre/pkg/logging"
)

const systemPrompt = `You are a Kubernetes cluster assistant. You answer questions about
cluster state by calling the available operations. Prefer summary
operations for broad queries and namespace-scoped operations when the
user names a namespace. Be concise and factual.`

// flags groups all CLI flags for the chat binary.
type flags struct {
	transport     string
	serverCommand string
	url           string
	apiKey        string
	query         string
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.transport, "transport", "stdio", "Carrier to reach the server: stdio, sse, or http")
	flag.StringVar(&f.serverCommand, "server-command", "virtualsre-server", "Server command for the stdio carrier")
	flag.StringVar(&f.url, "url", "http://localhost:8765", "Server base URL for the sse and http carriers")
	flag.StringVar(&f.apiKey, "api-key", os.Getenv("VIRTUALSRE_API_KEY"), "Bearer token for the sse and http carriers")
	flag.StringVar(&f.query, "query", "", "Run a single query and exit instead of starting the console")
	flag.Parse()
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

	log, syncLog, err := logging.NewLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer syncLog()

	sessionID := uuid.NewString()
	log = log.WithValues("session", sessionID)

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	provider, err := orchestrate.ProviderFromEnv(ctx)
	if err != nil {
		return err
	}
	log.Info("reasoning engine selected", "provider", provider.Name())

	tr, err := buildTransport(f, log)
	if err != nil {
		return err
	}

	if err := tr.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() {
		if err := tr.Disconnect(); err != nil {
			log.Info("disconnect failed", "error", err.Error())
		}
	}()

	operations, err := tr.ListOperations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list operations: %w", err)
	}
	log.Info("connected", "carrier", f.transport, "operations", len(operations))

	loop := orchestrate.NewLoop(tr, provider, log, orchestrate.WithEmitter(printEvent))
	history := orchestrate.NewHistory(systemPrompt, orchestrate.DefaultHistoryLimit)

	if f.query != "" {
		fmt.Println(loop.Run(ctx, f.query, history, operations))
		return nil
	}

	return console(ctx, loop, history, operations)
}

func buildTransport(f *flags, log logr.Logger) (transport.Transport, error) {
	switch f.transport {
	case "stdio":
		parts := strings.Fields(f.serverCommand)
		if len(parts) == 0 {
			return nil, fmt.Errorf("empty server command")
		}
		return transport.NewStdio(transport.StdioConfig{
			Command: parts[0],
			Args:    parts[1:],
		}, log), nil
	case "sse":
		return transport.NewSSE(transport.HTTPConfig{
			BaseURL: f.url,
			APIKey:  f.apiKey,
		}, log), nil
	case "http":
		return transport.NewHTTP(transport.HTTPConfig{
			BaseURL: f.url,
			APIKey:  f.apiKey,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown transport %q: expected stdio, sse, or http", f.transport)
	}
}

// printEvent renders loop progress for the console.
func printEvent(ev orchestrate.Event) {
	switch ev.Kind {
	case orchestrate.EventThinking:
		fmt.Printf("  [round %d] thinking...\n", ev.Round)
	case orchestrate.EventToolCall:
		fmt.Printf("  [round %d] calling %s\n", ev.Round, ev.Operation)
	case orchestrate.EventRoundLimit:
		fmt.Println("  reached the tool call limit for this question")
	}
}

func console(ctx context.Context, loop *orchestrate.Loop, history *orchestrate.History, operations []protocol.OperationDescriptor) error {
	fmt.Println("Cluster assistant ready. Type a question, 'clear' to reset the conversation, or 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		query := strings.TrimSpace(scanner.Text())
		switch {
		case query == "":
			continue
		case query == "quit", query == "exit":
			return nil
		case query == "clear":
			history.Clear()
			fmt.Println("Conversation cleared.")
			continue
		}

		fmt.Println(loop.Run(ctx, query, history, operations))
		fmt.Println()
	}
}
