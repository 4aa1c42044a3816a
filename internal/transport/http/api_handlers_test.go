package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
)

func postJSON(t *testing.T, ts *testServer, path string, body any) (*http.Response, AuthResponse) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Post(ts.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var out AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, out
}

func TestRegisterHandler(t *testing.T) {
	ts := startTestServer(t, nil)

	resp, out := postJSON(t, ts, "/auth/register", RegisterRequest{Username: "alice", Email: "a@x.com", Password: "secret"})
	if resp.StatusCode != http.StatusOK || !out.Success || out.Message != "User registered!" {
		t.Fatalf("unexpected register response %d %+v", resp.StatusCode, out)
	}
	if out.User == nil || out.User.Email != "a@x.com" || out.User.Username != "alice" || out.Token == "" {
		t.Fatalf("missing user or token: %+v", out)
	}

	resp, out = postJSON(t, ts, "/auth/register", RegisterRequest{Username: "alice2", Email: "a@x.com", Password: "secret"})
	if resp.StatusCode != http.StatusBadRequest || out.Success || out.Message != "Email already exists" {
		t.Fatalf("expected duplicate rejection, got %d %+v", resp.StatusCode, out)
	}

	resp, out = postJSON(t, ts, "/auth/register", RegisterRequest{Email: "b@x.com"})
	if resp.StatusCode != http.StatusBadRequest || out.Message != "Missing fields" {
		t.Fatalf("expected missing fields, got %d %+v", resp.StatusCode, out)
	}
}

func TestLoginHandler(t *testing.T) {
	ts := startTestServer(t, nil)
	postJSON(t, ts, "/auth/register", RegisterRequest{Username: "alice", Email: "a@x.com", Password: "secret"})

	resp, out := postJSON(t, ts, "/auth/login", LoginRequest{Email: "a@x.com", Password: "secret"})
	if resp.StatusCode != http.StatusOK || !out.Success || out.Message != "Login successful" || out.Token == "" {
		t.Fatalf("unexpected login response %d %+v", resp.StatusCode, out)
	}

	resp, out = postJSON(t, ts, "/auth/login", LoginRequest{Email: "a@x.com", Password: "nope"})
	if resp.StatusCode != http.StatusUnauthorized || out.Message != "Invalid credentials" {
		t.Fatalf("expected 401, got %d %+v", resp.StatusCode, out)
	}

	resp, out = postJSON(t, ts, "/auth/login", LoginRequest{Email: "a@x.com"})
	if resp.StatusCode != http.StatusBadRequest || out.Message != "Missing fields" {
		t.Fatalf("expected 400, got %d %+v", resp.StatusCode, out)
	}
}

func TestMeRequiresToken(t *testing.T) {
	ts := startTestServer(t, nil)
	token := registerUser(t, ts, "alice", "a@x.com")

	resp, err := ts.Client().Get(ts.URL + "/api/me")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var me UserResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || me.Email != "a@x.com" || me.Username != "alice" {
		t.Fatalf("unexpected /api/me response %d %+v", resp.StatusCode, me)
	}
}
