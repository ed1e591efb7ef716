// Package e2e drives a running service instance through its HTTP API with
// godog. Point E2E_BASE_URL at a server started with the severance seed
// file (testdata/severance_slots.json) before running the suite.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext carries shared state across steps of one scenario: the HTTP
// client, the service token, the last response, and the case under test.
type TestContext struct {
	baseURL string
	client  *http.Client
	token   string

	lastStatus int
	lastBody   []byte

	caseID string
}

// NewTestContext builds a context for one scenario run. The signing key must
// match the server's CANLAW_JWT_SIGNING_KEY.
func NewTestContext(baseURL, signingKey, service string) (*TestContext, error) {
	token, err := mintToken(signingKey, service)
	if err != nil {
		return nil, fmt.Errorf("mint service token: %w", err)
	}
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		token:   token,
	}, nil
}

func mintToken(signingKey, service string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"service": service,
		"iss":     "canlaw",
		"aud":     "canlaw-api",
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
}

// Reset clears per-scenario state so scenarios stay independent.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.caseID = ""
}

// POST sends a JSON body. When authorized is true the service token is
// attached.
func (tc *TestContext) POST(path string, body any, authorized bool) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authorized {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	return tc.send(req)
}

// GET fetches a path without authentication; reads are open.
func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	return tc.send(req)
}

func (tc *TestContext) send(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastBody = body
	return nil
}

// LastStatus returns the status code of the most recent response.
func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// ResponseField resolves a dotted path ("slot_values.severance") in the last
// JSON response.
func (tc *TestContext) ResponseField(path string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("last response is not JSON: %w", err)
	}
	current := doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not present in response", path)
		}
	}
	return current, nil
}

// SetCaseID remembers the case under test.
func (tc *TestContext) SetCaseID(id string) { tc.caseID = id }

// CaseID returns the remembered case ID.
func (tc *TestContext) CaseID() string { return tc.caseID }
