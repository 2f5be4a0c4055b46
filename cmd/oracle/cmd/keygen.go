package cmd

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fomc-oracle/pkg/config"
	"github.com/strangelove-ventures/fomc-oracle/pkg/tss"
)

const (
	flagOutputDir    = "out"
	flagParticipants = "participants"
)

func createParticipantDirectoryIfNecessary(out string, id int) (string, error) {
	dir := filepath.Join(out, fmt.Sprintf("participant_%d", id))
	dirStat, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("unexpected error fetching info for participant directory: %w", err)
		}
		if err := os.Mkdir(dir, 0700); err != nil {
			return "", fmt.Errorf("failed to make directory for participant files: %w", err)
		}
		return dir, nil
	}
	if !dirStat.IsDir() {
		return "", fmt.Errorf("path must be a directory: %s", dir)
	}
	return dir, nil
}

// keygenCmd deals a fresh BLS key into Shamir shares, one per participant.
func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Args:  cobra.NoArgs,
		Short: "Generate a group public key and one secret share per participant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			threshold, _ := flags.GetInt(flagThreshold)
			participants, _ := flags.GetInt(flagParticipants)

			thresholdCfg, err := tss.NewThresholdConfig(participants, threshold)
			if err != nil {
				return err
			}

			out, _ := flags.GetString(flagOutputDir)
			if out == "" {
				out = cfg.HomeDir
			}
			keyFile := filepath.Join(out, config.DefaultKeyFile)
			overwrite, _ := flags.GetBool(flagOverwrite)
			if _, err := os.Stat(keyFile); err == nil && !overwrite {
				return fmt.Errorf("%s already exists. Provide the -o flag to overwrite existing keys", keyFile)
			}

			// silence usage after all input has been validated
			cmd.SilenceUsage = true

			if err := os.MkdirAll(out, 0700); err != nil {
				return err
			}

			keys, err := tss.GenerateKeys(rand.Reader, thresholdCfg)
			if err != nil {
				return err
			}

			if err := keys.PublicKeySet().WriteFile(keyFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created public key set %s\n", keyFile)

			for id := 1; id <= participants; id++ {
				dir, err := createParticipantDirectoryIfNecessary(out, id)
				if err != nil {
					return err
				}
				filename := filepath.Join(dir, config.DefaultShareFile)
				if err := keys.Shares[id].WriteFile(filename); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created share %s\n", filename)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Group public key: %s\n", keys.GroupPublicKey)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP(flagOutputDir, "", "", "output directory (default is the home directory)")
	f.IntP(flagThreshold, "t", 0, "number of shares required to sign")
	_ = cmd.MarkFlagRequired(flagThreshold)
	f.IntP(flagParticipants, "n", 0, "total number of participants")
	_ = cmd.MarkFlagRequired(flagParticipants)
	f.BoolP(flagOverwrite, "o", false, "overwrite existing key files")

	return cmd
}
