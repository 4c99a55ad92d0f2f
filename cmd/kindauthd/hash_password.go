package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/kindauth/password"
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	var useBcrypt bool
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plain, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			var h interface{ Hash(string) (string, error) }
			if useBcrypt {
				h, err = password.NewBcrypt(0, password.Policy{})
			} else {
				h, err = password.NewArgon2(password.DefaultConfig())
			}
			if err != nil {
				return err
			}
			digest, err := h.Hash(plain)
			if err != nil {
				return fmt.Errorf("hash: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), digest)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useBcrypt, "bcrypt", false, "emit a bcrypt digest instead of argon2id")
	return cmd
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}
