package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"microlend/cmd/internal/passphrase"
	"microlend/crypto"
	"microlend/network"
	"microlend/services/lending/client"
)

const (
	envAddr       = "LENDCTL_ADDR"
	envToken      = "LENDCTL_TOKEN"
	envKey        = "LENDCTL_KEY"
	envPassphrase = "LENDCTL_PASSPHRASE"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	addr     string
	insecure bool
	caFile   string
	token    string
	keystore string
	keyHex   string
	timeout  time.Duration
}

// dialFunc opens a client for one command. signer is nil for queries.
type dialFunc func(ctx context.Context, opts *globalOptions, signer *crypto.PrivateKey) (*client.Client, error)

type app struct {
	opts globalOptions
	dial dialFunc
	pass *passphrase.Source
}

func newRootCmd(dial dialFunc) *cobra.Command {
	a := &app{dial: dial, pass: passphrase.NewSource(envPassphrase, "keystore passphrase")}
	if a.dial == nil {
		a.dial = dialService
	}

	root := &cobra.Command{
		Use:           "lendctl",
		Short:         "lendctl - operate the microlend lending service",
		Long:          `lendctl drives the lending gRPC service: contribute to the pool, manage collateral, and request, repay or liquidate loans.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.addr, "addr", envOr(envAddr, "localhost:50053"), "lending service address")
	flags.BoolVar(&a.opts.insecure, "insecure", false, "dial without TLS (development only)")
	flags.StringVar(&a.opts.caFile, "ca", "", "CA bundle used to verify the service certificate")
	flags.StringVar(&a.opts.token, "token", os.Getenv(envToken), "operator API token")
	flags.StringVar(&a.opts.keystore, "keystore", "", "keystore file holding the caller key")
	flags.StringVar(&a.opts.keyHex, "key", os.Getenv(envKey), "hex encoded caller key (development only)")
	flags.DurationVar(&a.opts.timeout, "timeout", 15*time.Second, "per-command deadline")

	root.AddCommand(
		a.contributeCmd(),
		a.depositCmd(),
		a.withdrawCmd(),
		a.requestCmd(),
		a.repayCmd(),
		a.liquidateCmd(),
		a.loanCmd(),
		a.loansCmd(),
		a.treasuryCmd(),
		a.positionCmd(),
		a.quoteCmd(),
		a.heightCmd(),
		a.mineCmd(),
		a.pauseCmd(),
		a.keygenCmd(),
		a.addressCmd(),
	)
	return root
}

func dialService(ctx context.Context, opts *globalOptions, signer *crypto.PrivateKey) (*client.Client, error) {
	var dialOpts []client.Option
	switch {
	case opts.insecure:
		dialOpts = append(dialOpts, client.WithInsecure())
	case opts.caFile != "":
		tlsCfg, err := network.ClientTLSConfig(opts.caFile, "", "", "")
		if err != nil {
			return nil, err
		}
		dialOpts = append(dialOpts, client.WithTLSConfig(tlsCfg))
	}
	if opts.token != "" {
		dialOpts = append(dialOpts, client.WithToken(opts.token))
	}
	if signer != nil {
		dialOpts = append(dialOpts, client.WithSigner(signer))
	}
	return client.Dial(ctx, opts.addr, dialOpts...)
}

// loadKey resolves the caller key from --key or --keystore.
func (a *app) loadKey() (*crypto.PrivateKey, error) {
	if raw := strings.TrimSpace(a.opts.keyHex); raw != "" {
		return crypto.LoadPrivateKeyHex(strings.TrimPrefix(raw, "0x"))
	}
	if a.opts.keystore == "" {
		return nil, fmt.Errorf("caller key required: set --keystore or --key")
	}
	pass, err := a.pass.Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(a.opts.keystore, pass)
}

// withClient runs fn against a connected client. Mutations pass signed=true
// so the caller envelope is attached.
func (a *app) withClient(cmd *cobra.Command, signed bool, fn func(context.Context, *client.Client) (any, error)) error {
	var signer *crypto.PrivateKey
	if signed {
		key, err := a.loadKey()
		if err != nil {
			return err
		}
		signer = key
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), a.opts.timeout)
	defer cancel()
	c, err := a.dial(ctx, &a.opts, signer)
	if err != nil {
		return fmt.Errorf("dial %s: %w", a.opts.addr, err)
	}
	defer c.Close()
	result, err := fn(ctx, c)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
