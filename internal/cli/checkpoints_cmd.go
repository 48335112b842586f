package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LdDl/sort-go/internal/storage"
)

// CheckpointsCmd returns the checkpoints command
func CheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "List saved tracker checkpoints",
		RunE:  runCheckpoints,
	}

	cmd.Flags().String("checkpoint-db", "", "SQLite database with tracker checkpoints")
	cmd.Flags().String("run-id", "", "Show only checkpoints of the run")
	cmd.Flags().Int("keep", 0, "Delete all but the newest N checkpoints of --run-id")
	cmd.MarkFlagRequired("checkpoint-db")

	return cmd
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("checkpoint-db")
	runID, _ := cmd.Flags().GetString("run-id")
	keep, _ := cmd.Flags().GetInt("keep")

	store, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if keep > 0 {
		if runID == "" {
			return fmt.Errorf("--keep requires --run-id")
		}
		removed, err := store.Prune(cmd.Context(), runID, keep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d checkpoints of run %s\n", removed, runID)
	}

	infos, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, color.New(color.FgYellow).Sprint("no checkpoints"))
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tFRAME\tTRACKS\tNEXT ID\tCREATED\tCHECKPOINT")
	for _, info := range infos {
		if runID != "" && info.RunID != runID {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
			color.New(color.FgCyan).Sprint(info.RunID),
			info.Frame,
			info.Tracks,
			info.NextID,
			info.CreatedAt.Format(time.RFC3339),
			info.ID,
		)
	}
	return tw.Flush()
}
