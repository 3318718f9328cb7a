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

package orchestrate

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// Environment variables consulted when picking a reasoning engine.
const (
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOpenAIModel  = "OPENAI_MODEL"
	EnvBedrockModel = "BEDROCK_MODEL_ID"
	EnvAWSRegion    = "AWS_REGION"
	EnvAWSProfile   = "AWS_PROFILE"
	EnvAWSAccessKey = "AWS_ACCESS_KEY_ID"
)

// ProviderFromEnv selects a reasoning engine from the environment. An
// OpenAI key takes precedence; otherwise any AWS credential signal selects
// Bedrock. Neither configured is an error.
func ProviderFromEnv(ctx context.Context) (Provider, error) {
	if key := os.Getenv(EnvOpenAIAPIKey); key != "" {
		var opts []OpenAIOption
		if model := os.Getenv(EnvOpenAIModel); model != "" {
			opts = append(opts, WithModel(model))
		}
		return NewOpenAIProvider(key, opts...), nil
	}

	if hasAWSCredentials() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		var opts []BedrockOption
		if model := os.Getenv(EnvBedrockModel); model != "" {
			opts = append(opts, WithModelID(model))
		}
		return NewBedrockProvider(cfg, opts...), nil
	}

	return nil, fmt.Errorf("no reasoning engine configured: set %s or AWS credentials", EnvOpenAIAPIKey)
}

func hasAWSCredentials() bool {
	for _, key := range []string{EnvAWSRegion, EnvAWSProfile, EnvAWSAccessKey} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}
