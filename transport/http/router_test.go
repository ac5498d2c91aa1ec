package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/gatekeeper/adapters/metrics"
	"github.com/layer-3/gatekeeper/adapters/password"
	"github.com/layer-3/gatekeeper/adapters/store"
	"github.com/layer-3/gatekeeper/adapters/tokenizer"
	"github.com/layer-3/gatekeeper/adapters/wallet"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, exposeReset bool) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	identities := store.NewMemoryStore()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	svc := service.NewAuthService(
		identities,
		store.NewMemoryLedger(),
		tokenizer.NewJWTTokenizer(key),
		password.NewHasher(password.Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}),
		wallet.NewEthereumRecoverer(),
		service.Config{},
		service.WithMetrics(collector),
	)

	return SetupRouter(svc, RouterConfig{
		Logger:           zerolog.Nop(),
		Metrics:          collector,
		Gatherer:         reg,
		ExposeResetToken: exposeReset,
	}), identities
}

func do(t *testing.T, router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestRegisterLoginAndMe(t *testing.T) {
	router, _ := newTestRouter(t, false)
	creds := gin.H{"email": "a@x.com", "password": "secret1"}

	w := do(t, router, http.MethodPost, "/api/auth/register", creds, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	registered := decode[AuthResponse](t, w)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "a@x.com", registered.User.Email)
	assert.Empty(t, registered.User.WalletAddress)

	w = do(t, router, http.MethodPost, "/api/auth/register", creds, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate_identity", decode[ErrorResponse](t, w).Error)

	w = do(t, router, http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": "wrong1"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", decode[ErrorResponse](t, w).Error)

	w = do(t, router, http.MethodPost, "/api/auth/login", creds, "")
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[AuthResponse](t, w)
	assert.Equal(t, registered.User.UserID, login.User.UserID)

	w = do(t, router, http.MethodGet, "/api/me", nil, login.Token)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[struct {
		User UserResponse `json:"user"`
	}](t, w)
	assert.Equal(t, registered.User, me.User)
}

func TestRegisterValidationDetails(t *testing.T) {
	router, _ := newTestRouter(t, false)

	w := do(t, router, http.MethodPost, "/api/auth/register", gin.H{"email": "a@x.com"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "validation_error", resp.Error)
	assert.Equal(t, []core.FieldError{{Field: "password", Reason: "required"}}, resp.Fields)

	w = do(t, router, http.MethodPost, "/api/auth/register", gin.H{"email": "nope", "password": "123"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp = decode[ErrorResponse](t, w)
	require.Len(t, resp.Fields, 2)
	assert.Equal(t, "email", resp.Fields[0].Field)
	assert.Equal(t, "password", resp.Fields[1].Field)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWalletLoginOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t, false)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	w := do(t, router, http.MethodPost, "/api/auth-web3/get-nonce-web3", gin.H{"walletAddress": strings.ToLower(address)}, "")
	require.Equal(t, http.StatusOK, w.Code)
	nonce := decode[map[string]string](t, w)["nonce"]
	require.NotEmpty(t, nonce)

	sig, err := crypto.Sign(accounts.TextHash([]byte(core.LoginMessage(nonce))), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	body := gin.H{"walletAddress": address, "signature": hexutil.Encode(sig)}

	w = do(t, router, http.MethodPost, "/api/auth-web3/login-web3", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	auth := decode[AuthResponse](t, w)
	assert.Equal(t, address, auth.User.WalletAddress)
	assert.Empty(t, auth.User.Email)

	w = do(t, router, http.MethodPost, "/api/auth-web3/login-web3", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "challenge_not_found", decode[ErrorResponse](t, w).Error)

	w = do(t, router, http.MethodGet, "/api/me", nil, auth.Token)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBadWalletAddress(t *testing.T) {
	router, _ := newTestRouter(t, false)

	w := do(t, router, http.MethodPost, "/api/auth-web3/get-nonce-web3", gin.H{"walletAddress": "0x123"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "walletAddress", decode[ErrorResponse](t, w).Fields[0].Field)
}

func TestMeRequiresValidToken(t *testing.T) {
	router, identities := newTestRouter(t, false)

	w := do(t, router, http.MethodGet, "/api/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/api/me", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "malformed_token", decode[ErrorResponse](t, w).Error)

	w = do(t, router, http.MethodPost, "/api/auth/register", gin.H{"email": "a@x.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	auth := decode[AuthResponse](t, w)

	identity, err := identities.FindByID(context.Background(), auth.User.UserID)
	require.NoError(t, err)
	email := "b@x.com"
	identity.Email = &email
	require.NoError(t, identities.Replace(context.Background(), identity))

	w = do(t, router, http.MethodGet, "/api/me", nil, auth.Token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "claim_mismatch", decode[ErrorResponse](t, w).Error)
}

func TestPasswordResetHidesUnknownEmails(t *testing.T) {
	router, _ := newTestRouter(t, false)

	w := do(t, router, http.MethodPost, "/api/auth/reset-password-request", gin.H{"email": "nobody@x.com"}, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.NotContains(t, w.Body.String(), "resetToken")
}

func TestPasswordResetWithExposedToken(t *testing.T) {
	router, _ := newTestRouter(t, true)

	w := do(t, router, http.MethodPost, "/api/auth/register", gin.H{"email": "a@x.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPost, "/api/auth/reset-password-request", gin.H{"email": "nobody@x.com"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/api/auth/reset-password-request", gin.H{"email": "a@x.com"}, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	resetToken := decode[map[string]string](t, w)["resetToken"]
	require.NotEmpty(t, resetToken)

	w = do(t, router, http.MethodPost, "/api/auth/reset-password", gin.H{"token": resetToken, "password": "new-secret"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": "new-secret"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t, false)

	w := do(t, router, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gatekeeper_http_requests_total")
}

func TestErrorResponseHidesInternals(t *testing.T) {
	resp := errorResponse(errors.New("pq: connection refused at 10.0.0.3"))
	assert.Equal(t, "internal", resp.Error)
	assert.Equal(t, "internal error", resp.Message)
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))

	unavailable := core.Unavailable("find identity", errors.New("dial tcp: refused"))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(unavailable))
	assert.NotContains(t, errorResponse(unavailable).Message, "dial tcp")
}
