package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lifeflow/authcore"
	"github.com/lifeflow/authcore/session"
	"github.com/lifeflow/authcore/token"
)

type recordedMail struct {
	to      string
	subject string
	body    string
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []recordedMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, recordedMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) lastBody(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		t.Fatal("no mail recorded")
	}
	return m.messages[len(m.messages)-1].body
}

func newTestServer(t *testing.T) (*httptest.Server, *recordingMailer) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	issuer, err := token.NewIssuer(token.Config{
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "authd-test",
	})
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}

	mailer := &recordingMailer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service, err := authcore.New(
		newMemoryIdentityStore(),
		issuer,
		session.NewStore(rdb, "as"),
		newMemoryOTPService(mailer),
		mailer,
		authcore.Config{Logger: logger},
	)
	if err != nil {
		t.Fatalf("service wiring failed: %v", err)
	}
	t.Cleanup(service.Close)

	server := httptest.NewServer(newAPIServer(service, logger).handler())
	t.Cleanup(server.Close)
	return server, mailer
}

func postJSON(t *testing.T, url, userAgent string, body any) (*http.Response, []byte) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

// digitsAfter pulls the six-digit code following prefix in a mail body.
func digitsAfter(t *testing.T, body, prefix string) string {
	t.Helper()
	rest, found := strings.CutPrefix(body, prefix)
	if !found || len(rest) < 6 {
		t.Fatalf("unexpected mail body: %q", body)
	}
	return rest[:6]
}

func TestFullAuthenticationFlow(t *testing.T) {
	server, mailer := newTestServer(t)
	const ua = "flow-test-agent"

	// Register.
	resp, data := postJSON(t, server.URL+"/v1/register", ua, registerRequest{
		Email:    "donor@example.com",
		Name:     "Donor",
		Password: "pw-initial",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", resp.StatusCode, data)
	}
	var info authcore.IdentityInfo
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if info.ID == 0 || info.Verified {
		t.Fatalf("unexpected identity: %+v", info)
	}

	// Login before verification is forbidden.
	resp, _ = postJSON(t, server.URL+"/v1/login", ua, loginRequest{
		Email: "donor@example.com", Password: "pw-initial",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unverified login status %d, want 403", resp.StatusCode)
	}

	// Verify with the mailed code.
	code := digitsAfter(t, mailer.lastBody(t), "Your verification code is ")
	resp, data = postJSON(t, server.URL+"/v1/verify-otp", ua, verifyOTPRequest{
		IdentityID: info.ID, Code: code,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status %d: %s", resp.StatusCode, data)
	}
	var verified map[string]bool
	if err := json.Unmarshal(data, &verified); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if !verified["verified"] {
		t.Fatal("expected verified=true")
	}

	// Login.
	resp, data = postJSON(t, server.URL+"/v1/login", ua, loginRequest{
		Email: "donor@example.com", Password: "pw-initial", StaySigned: true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", resp.StatusCode, data)
	}
	var pair token.Pair
	if err := json.Unmarshal(data, &pair); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}

	// Refresh from the same agent works.
	resp, _ = postJSON(t, server.URL+"/v1/refresh", ua, tokenRequest{RefreshToken: pair.RefreshToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status %d", resp.StatusCode)
	}

	// A different agent trips the anomaly check and kills the session.
	resp, _ = postJSON(t, server.URL+"/v1/refresh", "another-agent", tokenRequest{RefreshToken: pair.RefreshToken})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("foreign agent refresh status %d, want 401", resp.StatusCode)
	}
	resp, _ = postJSON(t, server.URL+"/v1/refresh", ua, tokenRequest{RefreshToken: pair.RefreshToken})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("post-anomaly refresh status %d, want 401", resp.StatusCode)
	}
}

func TestLoginAndLogout(t *testing.T) {
	server, mailer := newTestServer(t)
	const ua = "logout-test-agent"

	_, data := postJSON(t, server.URL+"/v1/register", ua, registerRequest{
		Email: "donor@example.com", Password: "pw-initial",
	})
	var info authcore.IdentityInfo
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	code := digitsAfter(t, mailer.lastBody(t), "Your verification code is ")
	postJSON(t, server.URL+"/v1/verify-otp", ua, verifyOTPRequest{IdentityID: info.ID, Code: code})

	_, data = postJSON(t, server.URL+"/v1/login", ua, loginRequest{
		Email: "donor@example.com", Password: "pw-initial",
	})
	var pair token.Pair
	if err := json.Unmarshal(data, &pair); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	resp, _ := postJSON(t, server.URL+"/v1/logout", ua, tokenRequest{RefreshToken: pair.RefreshToken})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status %d, want 204", resp.StatusCode)
	}
	resp, _ = postJSON(t, server.URL+"/v1/refresh", ua, tokenRequest{RefreshToken: pair.RefreshToken})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status %d, want 401", resp.StatusCode)
	}

	// Unknown token is a 404.
	resp, _ = postJSON(t, server.URL+"/v1/logout", ua, tokenRequest{RefreshToken: "never-issued"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown token logout status %d, want 404", resp.StatusCode)
	}
}

func TestErrorStatusCodes(t *testing.T) {
	server, _ := newTestServer(t)
	const ua = "status-test-agent"

	// Duplicate registration.
	postJSON(t, server.URL+"/v1/register", ua, registerRequest{Email: "dup@example.com", Password: "pw"})
	resp, _ := postJSON(t, server.URL+"/v1/register", ua, registerRequest{Email: "dup@example.com", Password: "pw"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status %d, want 409", resp.StatusCode)
	}

	// Unknown identity.
	resp, _ = postJSON(t, server.URL+"/v1/login", ua, loginRequest{Email: "nobody@example.com", Password: "pw"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown identity login status %d, want 404", resp.StatusCode)
	}
	resp, _ = postJSON(t, server.URL+"/v1/password/forgot", ua, emailRequest{Email: "nobody@example.com"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown identity forgot status %d, want 404", resp.StatusCode)
	}

	// Malformed body.
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/v1/login", strings.NewReader("{not json"))
	req.Header.Set("User-Agent", ua)
	badResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status %d, want 400", badResp.StatusCode)
	}
}

func TestPasswordRecoveryFlow(t *testing.T) {
	server, mailer := newTestServer(t)
	const ua = "recovery-test-agent"

	_, data := postJSON(t, server.URL+"/v1/register", ua, registerRequest{
		Email: "donor@example.com", Password: "pw-initial",
	})
	var info authcore.IdentityInfo
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	code := digitsAfter(t, mailer.lastBody(t), "Your verification code is ")
	postJSON(t, server.URL+"/v1/verify-otp", ua, verifyOTPRequest{IdentityID: info.ID, Code: code})

	// Forgot password mails a temporary one.
	resp, _ := postJSON(t, server.URL+"/v1/password/forgot", ua, emailRequest{Email: "donor@example.com"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("forgot status %d, want 204", resp.StatusCode)
	}
	temporary := digitsAfter(t, mailer.lastBody(t), "Your new password is ")

	// Reset with the temporary password issues a fresh pair.
	resp, data = postJSON(t, server.URL+"/v1/password/reset", ua, resetPasswordRequest{
		Email: "donor@example.com", OldPassword: temporary, NewPassword: "pw-final",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status %d: %s", resp.StatusCode, data)
	}
	var pair token.Pair
	if err := json.Unmarshal(data, &pair); err != nil {
		t.Fatalf("decode reset response: %v", err)
	}

	// The reset session refreshes fine and the final password logs in.
	resp, _ = postJSON(t, server.URL+"/v1/refresh", ua, tokenRequest{RefreshToken: pair.RefreshToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post-reset refresh status %d, want 200", resp.StatusCode)
	}
	resp, _ = postJSON(t, server.URL+"/v1/login", ua, loginRequest{
		Email: "donor@example.com", Password: "pw-final",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("final login status %d, want 200", resp.StatusCode)
	}

	// Wrong old password on reset is a 401.
	resp, _ = postJSON(t, server.URL+"/v1/password/reset", ua, resetPasswordRequest{
		Email: "donor@example.com", OldPassword: "wrong", NewPassword: "pw-x",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong old password reset status %d, want 401", resp.StatusCode)
	}
}
