package network

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"microlend/crypto"
)

func TestLevelDBNonceStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonces")
	store, err := OpenLevelDBNonceStore(path)
	require.NoError(t, err)

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	now := time.Unix(1_717_787_717, 0)
	clock := func() time.Time { return now }
	body := []byte(`{"loanId":3}`)
	headers, err := SignedHeaders(key, repayMethod, body, now)
	require.NoError(t, err)

	verifier := NewCallerVerifier(VerifierConfig{RequireSignature: true, Nonces: store, Now: clock})
	_, err = verifier.Verify(repayMethod, body, headerGetter(headers))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenLevelDBNonceStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	restarted := NewCallerVerifier(VerifierConfig{RequireSignature: true, Nonces: reopened, Now: clock})
	_, err = restarted.Verify(repayMethod, body, headerGetter(headers))
	require.ErrorIs(t, err, ErrEnvelopeReplay)
}

func TestLevelDBNonceStorePrune(t *testing.T) {
	store, err := OpenLevelDBNonceStore(filepath.Join(t.TempDir(), "nonces"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base := time.Unix(1_700_000_000, 0)
	seen, err := store.Observe("old|a", base)
	require.NoError(t, err)
	require.False(t, seen)
	seen, err = store.Observe("new|b", base.Add(10*time.Minute))
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = store.Observe("old|a", base.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, seen)

	require.NoError(t, store.Prune(base.Add(5*time.Minute)))

	seen, err = store.Observe("old|a", base.Add(11*time.Minute))
	require.NoError(t, err)
	require.False(t, seen)
	seen, err = store.Observe("new|b", base.Add(11*time.Minute))
	require.NoError(t, err)
	require.True(t, seen)
}

func TestVerifierPruneWithoutStore(t *testing.T) {
	require.NoError(t, NewCallerVerifier(VerifierConfig{}).PruneNonces())
}

func TestOpenLevelDBNonceStoreRequiresPath(t *testing.T) {
	_, err := OpenLevelDBNonceStore("  ")
	require.Error(t, err)
}
