package main

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/spf13/cobra"

	"microlend/crypto"
)

func (a *app) keygenCmd() *cobra.Command {
	var out string
	var printHex, lightKDF bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a caller key",
		Long:  `Generate a secp256k1 caller key. With --out the key is written to an encrypted keystore; otherwise --print-key must be set to emit it in hex.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" && !printHex {
				return fmt.Errorf("set --out to write a keystore or --print-key to print the raw key")
			}
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			result := map[string]string{"address": key.PubKey().Address().String()}
			if out != "" {
				pass, err := a.pass.Confirmed()
				if err != nil {
					return err
				}
				scryptN, scryptP := keystore.StandardScryptN, keystore.StandardScryptP
				if lightKDF {
					scryptN, scryptP = keystore.LightScryptN, keystore.LightScryptP
				}
				if err := crypto.SaveToKeystoreScrypt(out, key, pass, scryptN, scryptP); err != nil {
					return fmt.Errorf("write keystore: %w", err)
				}
				result["keystore"] = out
			}
			if printHex {
				result["key"] = hex.EncodeToString(key.Bytes())
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "keystore file to create")
	cmd.Flags().BoolVar(&printHex, "print-key", false, "print the raw private key")
	cmd.Flags().BoolVar(&lightKDF, "lightkdf", false, "use weaker scrypt parameters to save memory and time")
	return cmd
}

func (a *app) addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address of the caller key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.loadKey()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"address": key.PubKey().Address().String()})
		},
	}
}
