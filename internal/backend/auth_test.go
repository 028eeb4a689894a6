package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/erpconsole/model"
)

func TestAuth_loginReturnsIdentityAndCookies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		var creds Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "alice", creds.Username)

		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "backend-session"})
		writeJSON(w, http.StatusOK, map[string]any{
			"Data": map[string]any{
				"username":    "alice",
				"roles":       []string{"hr_manager"},
				"permissions": []string{"employees:view"},
			},
			"Success": true,
		})
	})

	id, cookies, err := NewAuth(c).Login(context.Background(), Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.True(t, id.Permissions.Has("employees:view"))
	require.Len(t, cookies, 1)
	assert.Equal(t, "backend-session", cookies[0].Value)
}

func TestAuth_loginFallsBackToMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1"})
			writeJSON(w, http.StatusOK, map[string]any{"Data": map[string]any{"token": "x"}, "Success": true})
		case "/api/auth/me":
			if ck, err := r.Cookie("sid"); assert.NoError(t, err) {
				assert.Equal(t, "s1", ck.Value)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"Data":    map[string]any{"username": "bob", "roles": []string{"sales"}},
				"Success": true,
			})
		}
	})

	id, _, err := NewAuth(c).Login(context.Background(), Credentials{Username: "bob", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "bob", id.Username)
}

func TestAuth_loginCamelCaseIdentity(t *testing.T) {
	var meCalls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/me" {
			meCalls.Add(1)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "sid-1"})
		writeJSON(w, http.StatusOK, map[string]any{
			"data":       map[string]any{"username": "carol", "roles": []string{"hr_viewer"}},
			"message":    "",
			"success":    true,
			"statusCode": 200,
		})
	})

	id, cookies, err := NewAuth(c).Login(context.Background(), Credentials{Username: "carol", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "carol", id.Username)
	assert.Len(t, cookies, 1)
	assert.Equal(t, int32(0), meCalls.Load())
}

func TestAuth_loginFallbackWithJarSendsCookieOnce(t *testing.T) {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "sid-1", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]any{"data": nil, "success": true, "statusCode": 200})
		case "/api/auth/me":
			assert.Len(t, r.Cookies(), 1, "cookie header = %q", r.Header.Get("Cookie"))
			writeJSON(w, http.StatusOK, map[string]any{
				"data":    map[string]any{"username": "dave"},
				"success": true,
			})
		}
	}, WithCookieJar(jar))

	id, _, err := NewAuth(c).Login(context.Background(), Credentials{Username: "dave", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "dave", id.Username)
}

func TestAuth_loginRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"Message": "Wrong password", "Success": false})
	})

	_, _, err := NewAuth(c).Login(context.Background(), Credentials{Username: "a", Password: "b"})
	env, ok := model.AsErrorEnvelope(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrUnauthorized, env.Code)
	assert.Equal(t, "Wrong password", env.Message)
}

func TestAuth_loginRequiresCredentials(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("backend must not be called")
	})
	_, _, err := NewAuth(c).Login(context.Background(), Credentials{Username: "a"})
	env, ok := model.AsErrorEnvelope(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrValidationError, env.Code)
}

func TestAuth_logoutIgnoresExpiredSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.NoError(t, NewAuth(c).Logout(context.Background()))
}
