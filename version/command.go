package version

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

const flagLong = "long"

// NewVersionCommand returns a CLI command to print the binary version
// information. ciphersuite is the signing DST in use.
func NewVersionCommand(ciphersuite string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the application binary version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			verInfo := NewInfo(ciphersuite)

			long, _ := cmd.Flags().GetBool(flagLong)
			if !long {
				cmd.Println(verInfo.Version)
				return nil
			}

			bz, err := json.MarshalIndent(verInfo, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(bz))
			return nil
		},
	}
	cmd.Flags().Bool(flagLong, false, "Print long version information as JSON")
	return cmd
}
