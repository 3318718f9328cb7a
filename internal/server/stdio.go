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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
)

// maxLineBytes bounds one request line on the stream carrier.
const maxLineBytes = 8 * 1024 * 1024

// ServeStdio answers line-delimited requests on in until it closes or the
// context is canceled. Responses are written one per line in request order.
// The protocol owns out; nothing else may write to it.
func ServeStdio(ctx context.Context, d *Dispatcher, in io.Reader, out io.Writer, log logr.Logger) error {
	log = log.WithName("stdio")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	writer := bufio.NewWriter(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp := d.DispatchRaw(ctx, []byte(line))
		payload, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("failed to serialize response: %w", err)
		}

		if _, err := writer.Write(payload); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if err := writer.Flush(); err != nil {
			return fmt.Errorf("failed to flush response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request stream: %w", err)
	}

	log.Info("request stream closed")
	return nil
}
