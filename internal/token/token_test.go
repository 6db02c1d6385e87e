// Copyright 2026 The GridGuard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package token

import (
	"errors"
	"testing"
	"time"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(secret string, at time.Time) *Service {
	return NewService([]byte(secret), "gridguard-test", time.Hour, func() time.Time { return at })
}

func TestIssueVerifyRoundtrip(t *testing.T) {
	svc := newTestService("test-secret", testTime)

	signed, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	actorID, err := svc.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if actorID != "alice" {
		t.Errorf("actor = %q, want alice", actorID)
	}
}

func TestVerify_Expired(t *testing.T) {
	svc := newTestService("test-secret", testTime)
	signed, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Same secret and issuer, but the clock has moved past the TTL.
	late := newTestService("test-secret", testTime.Add(2*time.Hour))
	_, err = late.Verify(signed)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("want ErrExpiredToken, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	svc := newTestService("test-secret", testTime)
	signed, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := newTestService("other-secret", testTime)
	_, err = other.Verify(signed)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("want ErrInvalidToken, got %v", err)
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	issuer := NewService([]byte("test-secret"), "someone-else", time.Hour, func() time.Time { return testTime })
	signed, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	svc := newTestService("test-secret", testTime)
	_, err = svc.Verify(signed)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("want ErrInvalidToken, got %v", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	svc := newTestService("test-secret", testTime)
	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q): want ErrInvalidToken, got %v", tok, err)
		}
	}
}
