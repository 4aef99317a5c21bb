package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/authcore/api"
	"github.com/harborline/authcore/audit"
	"github.com/harborline/authcore/auth"
	"github.com/harborline/authcore/ratelimit"
	"github.com/harborline/authcore/store/memory"
)

const (
	testUsername = "hauler"
	testEmail    = "hauler@harborline.example"
	testPassword = "Fr8ight!pass"
)

var fastParams = auth.Argon2Params{MemoryKiB: 8, Time: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func setupServer(t *testing.T, opts ...api.Option) *httptest.Server {
	t.Helper()
	mgr := auth.New(memory.New(), audit.NewDiscard(), auth.WithArgon2Params(fastParams))
	a := api.New(mgr, ratelimit.New(ratelimit.NewMemoryStore()), audit.NewDiscard(), opts...)
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func register(t *testing.T, baseURL string) int64 {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/api/v1/auth/register", map[string]string{
		"username":         testUsername,
		"email":            testEmail,
		"password":         testPassword,
		"confirm_password": testPassword,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reg := decode[api.RegisterResponse](t, resp)
	require.NotZero(t, reg.UserID)
	return reg.UserID
}

func login(t *testing.T, baseURL string) api.LoginResponse {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]string{
		"username": testUsername,
		"password": testPassword,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[api.LoginResponse](t, resp)
	require.NotEmpty(t, out.SessionToken)
	require.NotEmpty(t, out.CSRFToken)
	return out
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealth(t *testing.T) {
	srv := setupServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[api.HealthResponse](t, resp)
	assert.Equal(t, "ok", out.Status)
}

func TestRegisterAndLogin(t *testing.T) {
	srv := setupServer(t)
	register(t, srv.URL)

	out := login(t, srv.URL)
	assert.Equal(t, testUsername, out.User.Username)
	assert.Equal(t, "subscriber", out.User.Role)
	assert.Len(t, out.SessionToken, 64)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	srv := setupServer(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"short username", map[string]string{
			"username": "ab", "email": testEmail,
			"password": testPassword, "confirm_password": testPassword,
		}},
		{"username with spaces", map[string]string{
			"username": "bad name", "email": testEmail,
			"password": testPassword, "confirm_password": testPassword,
		}},
		{"invalid email", map[string]string{
			"username": testUsername, "email": "not-an-email",
			"password": testPassword, "confirm_password": testPassword,
		}},
		{"weak password", map[string]string{
			"username": testUsername, "email": testEmail,
			"password": "password", "confirm_password": "password",
		}},
		{"mismatched confirmation", map[string]string{
			"username": testUsername, "email": testEmail,
			"password": testPassword, "confirm_password": testPassword + "x",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", tc.body, nil)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	// None of the rejected bodies created an account.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"username": testUsername, "password": testPassword,
	}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterDuplicate(t *testing.T) {
	srv := setupServer(t)
	register(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", map[string]string{
		"username":         testUsername,
		"email":            "second@harborline.example",
		"password":         testPassword,
		"confirm_password": testPassword,
	}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	srv := setupServer(t)
	register(t, srv.URL)

	wrongPw := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"username": testUsername, "password": "Wr0ng!pass",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, wrongPw.StatusCode)
	bodyWrong := decode[api.ErrorResponse](t, wrongPw)

	noUser := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"username": "nobody", "password": "Wr0ng!pass",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, noUser.StatusCode)
	bodyNoUser := decode[api.ErrorResponse](t, noUser)

	assert.Equal(t, bodyWrong.Error, bodyNoUser.Error,
		"wrong password and unknown user read identically")
	assert.Empty(t, bodyWrong.ErrorID)
}

func TestAuthRateLimit(t *testing.T) {
	srv := setupServer(t, api.WithRatePolicy(3, time.Minute))

	body := map[string]string{"username": "nobody", "password": "Wr0ng!pass"}
	for i := 0; i < 3; i++ {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", body, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", body, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestValidateSession(t *testing.T) {
	srv := setupServer(t)
	register(t, srv.URL)
	sess := login(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/validate", nil, bearer(sess.SessionToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[api.ValidateResponse](t, resp)
	assert.True(t, out.Valid)
	require.NotNil(t, out.User)
	assert.Equal(t, testUsername, out.User.Username)
	assert.Equal(t, sess.CSRFToken, out.CSRFToken, "csrf token is stable for the session")
}

func TestValidateWithoutSession(t *testing.T) {
	srv := setupServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/validate", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	out := decode[api.ValidateResponse](t, resp)
	assert.False(t, out.Valid)
	assert.Nil(t, out.User)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	srv := setupServer(t)
	register(t, srv.URL)
	sess := login(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/logout", nil, bearer(sess.SessionToken))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/validate", nil, bearer(sess.SessionToken))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutWithoutSession(t *testing.T) {
	srv := setupServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/logout", nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChangePassword(t *testing.T) {
	srv := setupServer(t)
	register(t, srv.URL)
	sess := login(t, srv.URL)

	newPassword := "N3w!password"
	headers := bearer(sess.SessionToken)
	headers["X-CSRF-Token"] = sess.CSRFToken
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/change-password", map[string]string{
		"current_password": testPassword,
		"new_password":     newPassword,
		"confirm_password": newPassword,
	}, headers)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Old password no longer works, new one does.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"username": testUsername, "password": testPassword,
	}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"username": testUsername, "password": newPassword,
	}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChangePasswordRejectsBadCSRF(t *testing.T) {
	srv := setupServer(t)
	register(t, srv.URL)
	sess := login(t, srv.URL)

	headers := bearer(sess.SessionToken)
	headers["X-CSRF-Token"] = "forged"
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/change-password", map[string]string{
		"current_password": testPassword,
		"new_password":     "N3w!password",
		"confirm_password": "N3w!password",
	}, headers)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	srv := setupServer(t)
	register(t, srv.URL)
	sess := login(t, srv.URL)

	headers := bearer(sess.SessionToken)
	headers["X-CSRF-Token"] = sess.CSRFToken
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/change-password", map[string]string{
		"current_password": "Wr0ng!pass",
		"new_password":     "N3w!password",
		"confirm_password": "N3w!password",
	}, headers)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOpenAPISpecServed(t *testing.T) {
	srv := setupServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/openapi.yaml", nil, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "yaml")
}
