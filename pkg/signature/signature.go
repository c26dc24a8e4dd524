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

// Package signature verifies payment provider webhook signatures.
//
// The provider signs the exact request body it sends. The signature header
// carries comma separated elements of the form "t=<unix seconds>" and
// "v1=<hex digest>", where the digest is HMAC-SHA256 over "<t>.<body>"
// under the shared endpoint secret. More than one v1 element may appear
// while the sender rotates secrets; any single matching digest verifies.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Header is the request header carrying the provider signature.
const Header = "Stripe-Signature"

// Reason classifies why a payload failed signature validation. Reasons are
// for logs and metrics; responses carry a generic rejection only.
type Reason string

const (
	// ReasonMissingSignature means the signature header was absent or empty.
	ReasonMissingSignature Reason = "missing_signature"

	// ReasonMalformedSignature means the header was present but did not
	// parse into a timestamp and at least one candidate digest.
	ReasonMalformedSignature Reason = "malformed_signature"

	// ReasonSecretMismatch means no candidate digest matched the payload
	// digest under the shared secret.
	ReasonSecretMismatch Reason = "secret_mismatch"

	// ReasonStaleTimestamp means the digest matched but the signed
	// timestamp fell outside the accepted clock window.
	ReasonStaleTimestamp Reason = "stale_timestamp"
)

// Error is a signature validation failure.
type Error struct {
	Reason Reason
}

func (e *Error) Error() string {
	return "signature validation failed: " + string(e.Reason)
}

// Validate checks that payload was signed under secret and signed recently.
// It returns nil for an authentic, fresh payload and an *Error otherwise.
//
// The digest comparison is constant time. The timestamp window is only
// checked after a digest matches so that unsigned requests cannot probe
// the server clock. Skew is measured in both directions; a non-positive
// tolerance disables the staleness check.
func Validate(header string, payload []byte, secret string, now time.Time, tolerance time.Duration) error {
	if header == "" {
		return &Error{Reason: ReasonMissingSignature}
	}

	ts, candidates, ok := parseHeader(header)
	if !ok {
		return &Error{Reason: ReasonMalformedSignature}
	}

	want := digest(secret, ts, payload)
	matched := false
	for _, candidate := range candidates {
		if hmac.Equal(candidate, want) {
			matched = true
		}
	}
	if !matched {
		return &Error{Reason: ReasonSecretMismatch}
	}

	if tolerance > 0 {
		// Compare against both bounds rather than negating: Sub clamps to
		// the Duration limits for differences beyond ~292 years, and
		// negating the minimum Duration wraps back to itself.
		if skew := now.Sub(time.Unix(ts, 0)); skew > tolerance || skew < -tolerance {
			return &Error{Reason: ReasonStaleTimestamp}
		}
	}

	return nil
}

// Sign produces a signature header value for payload, signed at the given
// time. This is what the provider computes on its side; it exists here for
// tests and local delivery tooling.
func Sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return "t=" + strconv.FormatInt(ts, 10) + ",v1=" + hex.EncodeToString(digest(secret, ts, payload))
}

// parseHeader extracts the signed timestamp and every hex decodable v1
// digest from the header value. Elements with unknown keys are ignored for
// forward compatibility with new scheme versions.
func parseHeader(header string) (int64, [][]byte, bool) {
	var ts int64
	var haveTS bool
	var candidates [][]byte

	for _, element := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(element), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n <= 0 {
				return 0, nil, false
			}
			ts = n
			haveTS = true
		case "v1":
			d, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			candidates = append(candidates, d)
		}
	}

	if !haveTS || len(candidates) == 0 {
		return 0, nil, false
	}
	return ts, candidates, true
}

// digest computes HMAC-SHA256 over "<ts>.<payload>" under secret.
func digest(secret string, ts int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
