package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/authgate/authgate-be/internal/auth"
	"github.com/authgate/authgate-be/internal/database"
	"github.com/authgate/authgate-be/internal/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("database.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate error: %v", err)
	}

	userService := services.NewUserService(db)
	if _, err := userService.EnsureUser("user", "user@email.com", "password"); err != nil {
		t.Fatalf("EnsureUser error: %v", err)
	}

	issuer, err := auth.NewIssuer("test-secret", 20*time.Second)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}

	srv := httptest.NewServer(NewRouter(userService, issuer))
	t.Cleanup(srv.Close)
	return srv
}

func postLoginForm(t *testing.T, srv *httptest.Server, email, password string) (*http.Response, []byte) {
	t.Helper()

	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)

	resp, err := http.Post(srv.URL+"/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("POST /login error: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return resp, buf.Bytes()
}

func TestLogin_CorrectCredentials(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := postLoginForm(t, srv, "user@email.com", "password")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON content type, got %q", ct)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if parts := strings.Split(payload.Token, "."); len(parts) != 3 {
		t.Fatalf("expected 3-segment token, got %q", payload.Token)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := postLoginForm(t, srv, "user@email.com", "wrong")

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload["message"] != "Wrong credentials" {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestLogin_UnknownEmailIndistinguishable(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	wrongPassResp, wrongPassBody := postLoginForm(t, srv, "user@email.com", "wrong")
	unknownResp, unknownBody := postLoginForm(t, srv, "nobody@email.com", "x")

	if unknownResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown email, got %d", unknownResp.StatusCode)
	}
	if unknownResp.StatusCode != wrongPassResp.StatusCode {
		t.Fatalf("status mismatch: %d vs %d", unknownResp.StatusCode, wrongPassResp.StatusCode)
	}
	// Responses must not reveal whether the email exists.
	if !bytes.Equal(unknownBody, wrongPassBody) {
		t.Fatalf("bodies differ:\n%s\n%s", unknownBody, wrongPassBody)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := postLoginForm(t, srv, "", "")

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", resp.StatusCode, body)
	}
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload["message"] != "Wrong credentials" {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestLogin_JSONBody(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	reqBody, _ := json.Marshal(map[string]string{
		"email":    "user@email.com",
		"password": "password",
	})
	resp, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("expected a token in the response")
	}
}

func TestRegisterLoginMe(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	// Register
	regBody, _ := json.Marshal(map[string]string{
		"username": "newuser",
		"email":    "new@email.com",
		"password": "s3cret",
	})
	resp, err := http.Post(srv.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(regBody))
	if err != nil {
		t.Fatalf("POST register error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// Login
	loginResp, loginBody := postLoginForm(t, srv, "new@email.com", "s3cret")
	if loginResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", loginResp.StatusCode, loginBody)
	}
	var loginPayload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(loginBody, &loginPayload); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}

	// Me
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/auth/me", nil)
	if err != nil {
		t.Fatalf("NewRequest error: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+loginPayload.Token)
	meResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET me error: %v", err)
	}
	defer meResp.Body.Close()
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", meResp.StatusCode)
	}
	var me struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(meResp.Body).Decode(&me); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if me.Email != "new@email.com" {
		t.Fatalf("email mismatch: got %q", me.Email)
	}

	// Me without a token is rejected
	noTokResp, err := http.Get(srv.URL + "/api/v1/auth/me")
	if err != nil {
		t.Fatalf("GET me error: %v", err)
	}
	noTokResp.Body.Close()
	if noTokResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", noTokResp.StatusCode)
	}
}
