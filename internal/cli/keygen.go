package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/ari-accounts/internal/config"
	"github.com/mcoot/ari-accounts/internal/dependencies/random"
)

func newKeygenCmd() *cobra.Command {
	var (
		out  string
		size int
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a server secret file",
		Long: `keygen writes a fresh random secret with mode 0600. It refuses to
overwrite an existing file, since replacing the signing key signs out every
user and replacing the captcha key voids pending captchas.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			if size < 32 {
				return fmt.Errorf("--size must be at least 32 bytes")
			}

			secret, err := random.New().Bytes(size)
			if err != nil {
				return fmt.Errorf("failed to generate secret: %w", err)
			}
			if err := config.WriteSecret(out, secret); err != nil {
				return fmt.Errorf("failed to write secret: %w", err)
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage(fmt.Sprintf("wrote %d byte secret to %s", size, out))
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Secret file to create (required)")
	cmd.Flags().IntVar(&size, "size", config.SecretKeySize, "Secret size in bytes")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
