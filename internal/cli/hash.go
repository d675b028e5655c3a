package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mcoot/ari-accounts/internal/dependencies/random"
	"github.com/mcoot/ari-accounts/internal/services/credentials"
)

func newHashCmd() *cobra.Command {
	hasherCfg := credentials.DefaultHasherConfig()

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a password or PIN into the stored encoding",
		Long: `hash reads a secret (without echo when attached to a terminal) and prints
its fixed-length argon2id encoding, as stored for passwords and PINs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd)
			if err != nil {
				return err
			}
			if secret == "" {
				return errors.New("empty secret")
			}

			hasher, err := credentials.NewHasher(hasherCfg, random.New())
			if err != nil {
				return err
			}
			encoded, err := hasher.Hash(secret)
			if err != nil {
				return fmt.Errorf("failed to hash: %w", err)
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(HashResult{Hash: encoded})
			return nil
		},
	}

	cmd.Flags().Uint32Var(&hasherCfg.Memory, "memory", hasherCfg.Memory, "argon2 memory in KiB")
	cmd.Flags().Uint32Var(&hasherCfg.Time, "time", hasherCfg.Time, "argon2 passes")
	cmd.Flags().Uint8Var(&hasherCfg.Parallelism, "parallelism", hasherCfg.Parallelism, "argon2 lanes")

	return cmd
}

// readSecret prompts without echo on a terminal and otherwise reads one line
func readSecret(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "secret: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
