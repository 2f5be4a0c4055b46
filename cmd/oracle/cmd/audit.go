package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fomc-oracle/pkg/audit"
)

const flagLimit = "limit"

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the local attestation audit log",
	}
	cmd.AddCommand(auditListCmd())
	cmd.AddCommand(auditShowCmd())
	return cmd
}

func auditListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent attestation attempts, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt(flagLimit)
			cmd.SilenceUsage = true

			store, err := audit.Open(cfg.AuditDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tREQUEST\tVALUE\tSIGNERS\tTX\tERROR")
			for _, r := range records {
				value, signers := "-", "-"
				if r.Error == "" || len(r.SignerIDs) > 0 {
					value = strconv.FormatInt(r.Value, 10)
					signers = joinInts(r.SignerIDs)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Time.Format(time.RFC3339), r.RequestID, value, signers, orDash(r.TxID), orDash(r.Error))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int(flagLimit, 20, "maximum number of records (0 for all)")
	return cmd
}

func auditShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [request-id]",
		Short: "Print one attestation record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			store, err := audit.Open(cfg.AuditDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func joinInts(ids []int) string {
	if len(ids) == 0 {
		return "-"
	}
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.Itoa(id)
	}
	return strings.Join(s, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
