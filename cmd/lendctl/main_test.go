package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	lendingv1 "microlend/api/lending/v1"
	"microlend/core"
	"microlend/core/genesis"
	"microlend/crypto"
	"microlend/native/lending"
	"microlend/services/lending/client"
	"microlend/services/lending/engine"
	"microlend/services/lending/server"
	"microlend/storage"
)

const operatorToken = "ops"

func bufDialer(t *testing.T, keys ...*crypto.PrivateKey) dialFunc {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB(), lending.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Close() })
	alloc := make(map[string]string, len(keys))
	for _, key := range keys {
		alloc[key.PubKey().Address().String()] = "5000000"
	}
	spec, err := genesis.FromAllocations(alloc, 0)
	require.NoError(t, err)
	_, err = node.ApplyGenesis(spec)
	require.NoError(t, err)

	opts, err := server.Interceptors(server.Config{RequireSignedCaller: true, APITokens: []string{operatorToken}})
	require.NoError(t, err)
	listener := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(opts...)
	lendingv1.RegisterLendingServiceServer(srv, server.New(engine.NewNodeAdapter(node, nil), nil))
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	return func(ctx context.Context, g *globalOptions, signer *crypto.PrivateKey) (*client.Client, error) {
		dialOpts := []client.Option{
			client.WithInsecure(),
			client.WithDialOptions(grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
				return listener.Dial()
			})),
		}
		if g.token != "" {
			dialOpts = append(dialOpts, client.WithToken(g.token))
		}
		if signer != nil {
			dialOpts = append(dialOpts, client.WithSigner(signer))
		}
		return client.Dial(ctx, "bufnet", dialOpts...)
	}
}

func runCLI(t *testing.T, dial dialFunc, args ...string) (map[string]any, error) {
	t.Helper()
	cmd := newRootCmd(dial)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	var result map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &result), out.String())
	return result, nil
}

func keyFlag(key *crypto.PrivateKey) string {
	return "--key=" + hex.EncodeToString(key.Bytes())
}

func TestCLILoanLifecycle(t *testing.T) {
	lender, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	borrower, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	dial := bufDialer(t, lender, borrower)
	token := "--token=" + operatorToken

	out, err := runCLI(t, dial, "contribute", "5000000", keyFlag(lender), token)
	require.NoError(t, err)
	require.EqualValues(t, 1, out["contributionId"])

	out, err = runCLI(t, dial, "deposit", "3000000", keyFlag(borrower), token)
	require.NoError(t, err)
	require.EqualValues(t, 1, out["depositId"])

	out, err = runCLI(t, dial, "quote", "1000000", "10")
	require.NoError(t, err)
	require.Equal(t, "1000100", out["amountDue"])

	out, err = runCLI(t, dial, "request", "1000000", "10", keyFlag(borrower), token)
	require.NoError(t, err)
	require.EqualValues(t, 0, out["loanId"])

	_, err = runCLI(t, dial, "liquidate", "0", keyFlag(lender), token)
	require.Error(t, err)
	require.ErrorIs(t, err, lending.ErrLoanNotOverdue)

	out, err = runCLI(t, dial, "repay", "0", keyFlag(borrower), token)
	require.NoError(t, err)
	require.Equal(t, true, out["repaid"])

	out, err = runCLI(t, dial, "loan", "0")
	require.NoError(t, err)
	require.Equal(t, "repaid", out["status"])

	out, err = runCLI(t, dial, "position", keyFlag(borrower))
	require.NoError(t, err)
	require.Equal(t, "3000000", out["collateral"])

	out, err = runCLI(t, dial, "mine", "5", token)
	require.NoError(t, err)
	require.EqualValues(t, 5, out["height"])

	out, err = runCLI(t, dial, "height")
	require.NoError(t, err)
	require.EqualValues(t, 5, out["height"])
}

func TestCLIRequiresCallerKey(t *testing.T) {
	dial := bufDialer(t)
	_, err := runCLI(t, dial, "contribute", "1")
	require.ErrorContains(t, err, "caller key required")

	_, err = runCLI(t, dial, "request", "1", "ten", "--key=00")
	require.ErrorContains(t, err, "invalid duration")

	_, err = runCLI(t, dial, "loan", "9")
	require.ErrorContains(t, err, "not found")
}

func TestCLIKeygenWritesKeystore(t *testing.T) {
	t.Setenv(envPassphrase, "hunter22")
	path := filepath.Join(t.TempDir(), "caller.json")

	out, err := runCLI(t, nil, "keygen", "--out", path, "--lightkdf")
	require.NoError(t, err)
	address, ok := out["address"].(string)
	require.True(t, ok)
	require.NotContains(t, out, "key")

	out, err = runCLI(t, nil, "address", "--keystore", path)
	require.NoError(t, err)
	require.Equal(t, address, out["address"])

	_, err = runCLI(t, nil, "keygen")
	require.Error(t, err)
}
