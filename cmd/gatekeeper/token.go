package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Work with gatekeeper tokens and signing keys",
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Show the claims of a session or reset token",
	Long: `Decodes a token and prints its header and claims. The signature is not
verified, so the output must not be used to make access decisions.`,
	Example: `  gatekeeper token inspect eyJhbGciOiJFUzI1NiIs...`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspectToken(cmd.OutOrStdout(), args[0], time.Now())
	},
}

var tokenKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a P-256 signing key for token.signing_key_file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return fmt.Errorf("generating key: %w", err)
		}
		der, err := x509.MarshalECPrivateKey(key)
		if err != nil {
			return fmt.Errorf("encoding key: %w", err)
		}
		block := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

		if out == "" {
			_, err = cmd.OutOrStdout().Write(block)
			return err
		}
		if err := os.WriteFile(out, block, 0o600); err != nil {
			return fmt.Errorf("writing key: %w", err)
		}
		logger.Info().Str("path", out).Msg("signing key written")
		return nil
	},
}

func inspectToken(w io.Writer, raw string, now time.Time) error {
	claims := jwt.MapClaims{}
	token, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return fmt.Errorf("decoding token: %w", err)
	}

	bold := color.New(color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintfFunc()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Claim", "Value"})
	t.AppendRow(table.Row{"alg", token.Method.Alg()})

	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value := fmt.Sprint(claims[k])
		switch k {
		case "exp", "iat", "nbf":
			if seconds, ok := claims[k].(float64); ok {
				at := time.Unix(int64(seconds), 0).UTC()
				value = fmt.Sprintf("%s %s", at.Format(time.RFC3339), faint("(%s)", relative(at, now)))
			}
		case "sub", "email", "walletAddress":
			value = bold(value)
		}
		t.AppendRow(table.Row{k, value})
	}

	s := table.StyleRounded
	s.Format.Header = text.FormatDefault
	t.SetStyle(s)
	t.Render()
	return nil
}

func relative(at, now time.Time) string {
	d := at.Sub(now).Round(time.Second)
	if d < 0 {
		return (-d).String() + " ago"
	}
	return "in " + d.String()
}

func init() {
	tokenKeygenCmd.Flags().String("out", "", "Write the key to this file instead of stdout")

	tokenCmd.AddCommand(tokenInspectCmd, tokenKeygenCmd)
	rootCmd.AddCommand(tokenCmd)
}
