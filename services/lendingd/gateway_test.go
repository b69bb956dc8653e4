package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"microlend/core"
	gatewaycfg "microlend/gateway/config"
	"microlend/native/lending"
	"microlend/network"
	"microlend/services/lending/engine"
	"microlend/storage"
)

func newTestEngine(t *testing.T) engine.Engine {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB(), lending.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Close() })
	return engine.NewNodeAdapter(node, nil)
}

func TestGatewayHandlerWithoutAuthHidesAdminRoutes(t *testing.T) {
	cfg := gatewaycfg.Default()
	cfg.Auth.Enabled = false
	handler, err := newGatewayHandler(cfg, newTestEngine(t), network.NewCallerVerifier(network.VerifierConfig{}), nil, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/mine", strings.NewReader(`{"count":1}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/lending/height", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"height":0`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/lending/events", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGatewayHandlerAppliesRateLimits(t *testing.T) {
	cfg := gatewaycfg.Default()
	cfg.Auth.HMACSecret = "secret"
	cfg.RateLimits = []gatewaycfg.RateLimitConfig{{ID: "lending", RatePerSecond: 0.001, Burst: 1}}
	handler, err := newGatewayHandler(cfg, newTestEngine(t), network.NewCallerVerifier(network.VerifierConfig{}), nil, nil)
	require.NoError(t, err)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/v1/lending/treasury", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/v1/lending/treasury", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)

	admin := httptest.NewRecorder()
	handler.ServeHTTP(admin, httptest.NewRequest(http.MethodPost, "/v1/admin/mine", strings.NewReader(`{"count":1}`)))
	require.Equal(t, http.StatusUnauthorized, admin.Code)
}

func TestGatewayServerCarriesTimeouts(t *testing.T) {
	cfg := gatewaycfg.Default()
	cfg.Auth.Enabled = false
	cfg.ListenAddress = "127.0.0.1:0"
	server, err := newGatewayServer(cfg, newTestEngine(t), network.NewCallerVerifier(network.VerifierConfig{}), nil, nil)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:0", server.Addr)
	require.Equal(t, 30*time.Second, server.ReadTimeout)
	require.Equal(t, 120*time.Second, server.IdleTimeout)
}

func TestResolvePath(t *testing.T) {
	require.Equal(t, "conf/genesis.json", resolvePath("conf/config.toml", "genesis.json"))
	require.Equal(t, "/abs/genesis.json", resolvePath("conf/config.toml", "/abs/genesis.json"))
	require.Equal(t, "", resolvePath("conf/config.toml", ""))
}
