package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"postrelay/config"
	"postrelay/failures"
	"postrelay/logger"
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Inspect dead-lettered deliveries",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setup(cmd, args); err != nil {
			return err
		}
		return failures.Init(config.GetFailuresDBPath())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		failures.Close()
		logger.Close()
	},
}

var failuresListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered deliveries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := failures.ListFailures()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tPROFILE\tPOST\tSTAGE\tATTEMPTS\tERROR")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
				r.ID, r.Timestamp.Format(time.DateTime), r.Profile, r.PostID, r.Stage, r.Attempts, oneLine(r.Error, 80))
		}
		return w.Flush()
	},
}

var failuresShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one dead-lettered delivery as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := failures.GetFailure(args[0])
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("no failure recorded for %s", args[0])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

var failuresDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a dead-lettered delivery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return failures.DeleteFailure(args[0])
	},
}

func init() {
	failuresCmd.AddCommand(failuresListCmd, failuresShowCmd, failuresDeleteCmd)
	rootCmd.AddCommand(failuresCmd)
}

func oneLine(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return string(r)
}
