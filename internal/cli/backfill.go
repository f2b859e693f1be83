package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewBackfillCmd — herald backfill: привязка публикаций к слотам.
func NewBackfillCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var (
		date  string
		write bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Link unlinked posted records to the day's slots",
		Long:  "Dry-run by default: prints proposed links. --write applies them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := appFn(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			out := outputFn()

			day, err := dateOrDefault(date, a.Now(), -1)
			if err != nil {
				return err
			}

			report, err := a.Backfiller.Backfill(ctx, day, write)
			if err != nil {
				return err
			}

			rows := make([][]string, len(report.Matches))
			for i, m := range report.Matches {
				rows[i] = []string{
					m.RecordID.String(),
					strconv.Itoa(m.SlotIndex),
					m.Platform,
					string(m.Kind),
					m.Delta.String(),
					strconv.FormatBool(m.Linked),
				}
			}
			out.Print([]string{"RECORD", "SLOT", "PLATFORM", "MATCH", "DELTA", "LINKED"}, rows, report)

			mode := "dry-run"
			if write {
				mode = "write"
			}
			out.Success(fmt.Sprintf("Backfill %s (%s): %d examined, %d matched, %d linked, %d unmatched",
				day, mode, report.Examined, len(report.Matches), report.Linked, len(report.Unmatched)))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day YYYY-MM-DD in ET (default: yesterday)")
	cmd.Flags().BoolVar(&write, "write", false, "Apply the links")

	return cmd
}
