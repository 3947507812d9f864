package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentcanvas/agentcanvas/idtoken"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var (
		outDir string
		kid    string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA signing key for identity tokens and print its JWKS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			keyPath, jwks, err := writeSigningKey(outDir, kid)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", keyPath)
			_, err = cmd.OutOrStdout().Write(append(jwks, '\n'))
			return err
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for signing-key.pem and jwks.json")
	cmd.Flags().StringVar(&kid, "kid", "", "key id; defaults to the RFC 7638 thumbprint")
	return cmd
}

// writeSigningKey creates signing-key.pem (0600) and jwks.json in dir and
// returns the key path and the JWKS document.
func writeSigningKey(dir, kid string) (string, []byte, error) {
	key, err := idtoken.GenerateKey()
	if err != nil {
		return "", nil, err
	}
	pem, err := idtoken.EncodePrivateKey(key)
	if err != nil {
		return "", nil, err
	}
	m, err := idtoken.NewManager(idtoken.Config{
		Issuer:        "keygen",
		PrivateKeyPEM: pem,
		KeyID:         kid,
	})
	if err != nil {
		return "", nil, err
	}
	jwks, err := m.JWKSJSON()
	if err != nil {
		return "", nil, err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("create %s: %w", dir, err)
	}
	keyPath := filepath.Join(dir, "signing-key.pem")
	if err := os.WriteFile(keyPath, pem, 0o600); err != nil {
		return "", nil, fmt.Errorf("write key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "jwks.json"), jwks, 0o644); err != nil {
		return "", nil, fmt.Errorf("write jwks: %w", err)
	}
	return keyPath, jwks, nil
}
