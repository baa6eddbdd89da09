package application

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/KOMKZ/go-yogan-admission/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inspectServer(t *testing.T, deps HTTPServerDeps) http.Handler {
	t.Helper()
	cfg := testConfig()
	cfg.Middleware = &MiddlewareConfig{RateLimit: &RateLimitConfig{Enable: false}}
	server, err := NewHTTPServer(cfg, deps)
	require.NoError(t, err)
	return server.Engine()
}

func decodeEnvelope(t *testing.T, body []byte, data interface{}) httpx.Response {
	t.Helper()
	var raw struct {
		httpx.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &raw))
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.Response
}

func TestAdmissionAPI_ListPolicies(t *testing.T) {
	deps := testDeps()
	engine := inspectServer(t, deps)

	var list ListPoliciesResponse
	w := get(engine, "/admission/policies")
	require.Equal(t, http.StatusOK, w.Code)
	decodeEnvelope(t, w.Body.Bytes(), &list)

	assert.Equal(t, "api", list.DefaultPolicy)
	require.Len(t, list.Policies, 2)
	assert.Equal(t, "api", list.Policies[0].ID)
	assert.Equal(t, "fixed_window", list.Policies[0].Strategy)
	assert.Equal(t, "local", list.Policies[0].Backend)
	assert.Equal(t, "1m0s", list.Policies[0].WindowSize)
	assert.False(t, list.Policies[0].Active)
	assert.Equal(t, "strict", list.Policies[1].ID)

	get(engine, "/admission/policies/strict/state?key=a")
	w = get(engine, "/admission/policies")
	decodeEnvelope(t, w.Body.Bytes(), &list)
	assert.False(t, list.Policies[0].Active)
	assert.True(t, list.Policies[1].Active)
	assert.Zero(t, list.Policies[1].TrackedKeys, "reading state does not track the key")

	policy, _ := deps.Admission.Policy("strict")
	l, err := deps.Factory.GetOrCreate("strict", policy)
	require.NoError(t, err)
	for _, key := range []string{"a", "b"} {
		_, err := l.Allow(context.Background(), key)
		require.NoError(t, err)
	}
	var after ListPoliciesResponse
	w = get(engine, "/admission/policies")
	decodeEnvelope(t, w.Body.Bytes(), &after)
	assert.Equal(t, 2, after.Policies[1].TrackedKeys)
}

func TestAdmissionAPI_KeyStateDoesNotConsume(t *testing.T) {
	deps := testDeps()
	engine := inspectServer(t, deps)

	policy, _ := deps.Admission.Policy("api")
	l, err := deps.Factory.GetOrCreate("api", policy)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		allowed, err := l.Allow(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	for i := 0; i < 2; i++ {
		var state KeyStateResponse
		w := get(engine, "/admission/policies/API/state?key=10.0.0.1")
		require.Equal(t, http.StatusOK, w.Code)
		decodeEnvelope(t, w.Body.Bytes(), &state)

		assert.Equal(t, KeyStateResponse{
			Policy:            "api",
			Key:               "10.0.0.1",
			Limit:             2,
			Count:             2,
			Remaining:         0,
			RetryAfterSeconds: 60,
		}, state)
	}

	var fresh KeyStateResponse
	decodeEnvelope(t, get(engine, "/admission/policies/api/state?key=10.0.0.2").Body.Bytes(), &fresh)
	assert.Equal(t, 0, fresh.Count)
	assert.Equal(t, 2, fresh.Remaining)
	assert.Equal(t, 0, fresh.RetryAfterSeconds)
}

func TestAdmissionAPI_Errors(t *testing.T) {
	engine := inspectServer(t, testDeps())

	w := get(engine, "/admission/policies/nope/state?key=a")
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeEnvelope(t, w.Body.Bytes(), nil)
	assert.Equal(t, httpx.ErrNotFound.Code(), resp.Code)
	assert.Equal(t, "policy nope is not configured", resp.Msg)

	var data map[string]map[string]string
	w = get(engine, "/admission/policies/api/state")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	decodeEnvelope(t, w.Body.Bytes(), &data)
	assert.Contains(t, data["fields"], "key")
}

func TestAdmissionAPI_PrefixAndDisable(t *testing.T) {
	cfg := testConfig()
	cfg.Middleware = &MiddlewareConfig{RateLimit: &RateLimitConfig{Enable: false}}
	cfg.Inspect = &InspectConfig{Enable: true, Prefix: "/ops"}
	server, err := NewHTTPServer(cfg, testDeps())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(server.Engine(), "/ops/policies").Code)
	assert.Equal(t, http.StatusNotFound, get(server.Engine(), "/admission/policies").Code)

	cfg.Inspect = &InspectConfig{Enable: false}
	server, err = NewHTTPServer(cfg, testDeps())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, get(server.Engine(), "/admission/policies").Code)
}
