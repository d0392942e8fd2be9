// Copyright 2025 TradeFlow
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

package orchestrator

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndValidateToken(t *testing.T) {
	auth := NewAuthenticator("test-secret", time.Hour)

	token, err := auth.IssueToken("trader1", "rates-desk", "trader")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	user, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if user.Subject != "trader1" || user.Desk != "rates-desk" || user.Role != "trader" {
		t.Errorf("User = %+v", user)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	auth := NewAuthenticator("secret-a", time.Hour)
	other := NewAuthenticator("secret-b", time.Hour)

	token, err := other.IssueToken("trader1", "", "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := auth.ValidateToken(token); err == nil {
		t.Error("Expected validation failure for token signed with another secret")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	auth := NewAuthenticator("test-secret", time.Hour)
	if _, err := auth.ValidateToken("not.a.token"); err == nil {
		t.Error("Expected validation failure")
	}
}

func TestMiddlewareEnforcesAuth(t *testing.T) {
	auth := NewAuthenticator("test-secret", time.Hour)

	var gotUser *AuthUser
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No token: rejected.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/pipeline/executions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("No token: status = %d", rec.Code)
	}

	// Valid token: passes with the user on the context.
	token, err := auth.IssueToken("trader1", "fx-desk", "trader")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest("GET", "/api/v1/pipeline/executions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Valid token: status = %d", rec.Code)
	}
	if gotUser == nil || gotUser.Subject != "trader1" {
		t.Errorf("Context user = %+v", gotUser)
	}
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	auth := NewAuthenticator("", time.Hour)
	if auth.Enabled() {
		t.Fatal("Empty secret must disable auth")
	}

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Disabled auth: status = %d", rec.Code)
	}
}
