// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package secrets resolves configuration values from Secret Manager so the
// webhook and store credentials never need to live in plain environment
// variables.
package secrets

import (
	"context"
	"fmt"
	"hash/crc32"
	"regexp"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// secretRefPattern matches a Secret Manager secret version resource name.
var secretRefPattern = regexp.MustCompile(`^projects/[^/]+/secrets/[^/]+/versions/[^/]+$`)

// IsSecretRef reports whether value names a Secret Manager secret version
// rather than a literal secret.
func IsSecretRef(value string) bool {
	return secretRefPattern.MatchString(value)
}

// Resolve returns value unchanged unless it is a secret version resource
// name, in which case the secret payload is fetched and returned instead.
func Resolve(ctx context.Context, value string) (string, error) {
	if !IsSecretRef(value) {
		return value, nil
	}
	return GetSecret(ctx, value)
}

// GetSecret reads a secret from Secret Manager and validates that it was
// not corrupted during retrieval. The secretResourceName should be in the
// format: 'projects/*/secrets/*/versions/*'.
func GetSecret(ctx context.Context, secretResourceName string) (string, error) {
	sm, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create secret manager client: %w", err)
	}
	secret, err := AccessSecret(ctx, sm, secretResourceName)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve secret: %w", err)
	}
	if err := sm.Close(); err != nil {
		return "", fmt.Errorf("failed to close secret manager client: %w", err)
	}
	return secret, nil
}

// AccessSecret reads a secret from Secret Manager using the given client
// and validates that it was not corrupted during retrieval. The
// secretResourceName should be in the format:
// 'projects/*/secrets/*/versions/*'.
func AccessSecret(ctx context.Context, client *secretmanager.Client, secretResourceName string) (string, error) {
	req := secretmanagerpb.AccessSecretVersionRequest{
		Name: secretResourceName,
	}
	result, err := client.AccessSecretVersion(ctx, &req)
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %q: %w", secretResourceName, err)
	}
	crc32c := crc32.MakeTable(crc32.Castagnoli)
	checksum := int64(crc32.Checksum(result.GetPayload().GetData(), crc32c))
	if checksum != result.GetPayload().GetDataCrc32C() {
		return "", fmt.Errorf("failed to access secret version %q: data corrupted", secretResourceName)
	}
	return string(result.GetPayload().GetData()), nil
}
