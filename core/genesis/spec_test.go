package genesis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"microlend/crypto"
)

func addr(b byte) crypto.Address {
	var raw [crypto.AddressLength]byte
	raw[0] = b
	return crypto.MustNewAddress(crypto.AccountPrefix, raw)
}

func TestLoadGenesisSpecOrdersAllocations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	body := `{"initialHeight": 5, "alloc": {"` + addr(2).String() + `": "200", "` + addr(1).String() + `": "100", "` + addr(3).String() + `": "0"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)
	require.Equal(t, uint64(5), spec.InitialHeight)

	allocs := spec.Allocations()
	require.Len(t, allocs, 2)
	require.Equal(t, addr(1).String(), allocs[0].Address.String())
	require.Equal(t, "100", allocs[0].Amount.String())
	require.Equal(t, addr(2).String(), allocs[1].Address.String())
}

func TestGenesisRejectsBadInput(t *testing.T) {
	_, err := FromAllocations(map[string]string{"not-an-address": "1"}, 0)
	require.Error(t, err)

	_, err = FromAllocations(map[string]string{addr(1).String(): "-4"}, 0)
	require.Error(t, err)

	_, err = FromAllocations(map[string]string{addr(1).String(): "ten"}, 0)
	require.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"unknown": true}`), 0o600))
	_, err = LoadGenesisSpec(path)
	require.Error(t, err)
}
