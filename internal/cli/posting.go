package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Herald/internal/domain"
)

// NewPostDueCmd — herald post-due: публикует наступивший слот.
func NewPostDueCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "post-due",
		Short: "Claim and publish the earliest due slot",
		Long: "Claims the earliest pending slot whose time has come (plus --grace)\n" +
			"and publishes it. Safe to run concurrently: only one caller publishes\n" +
			"a slot. Exits 1 only when publishing failed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := appFn(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			out := outputFn()

			if !cmd.Flags().Changed("grace") {
				grace = a.Config.Posting.Grace
			}

			res, err := a.Claimer.PostDue(ctx, grace)
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(res)
			} else {
				out.Line("%s", res.Result)
				if res.Slot != nil {
					out.Table(slotHeaders(), slotRows([]domain.ScheduledSlot{*res.Slot}))
				}
				if res.ExternalPostID != "" {
					out.Line("external_post_id: %s", res.ExternalPostID)
				}
			}

			if res.Result.IsFailure() {
				out.Error(res.Error)
				return ErrBlocking
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", 0, "Treat slots due within this window as due (default: posting.grace)")

	return cmd
}

// NewSweepCmd — herald sweep: закрывает зависшие в posting слоты.
func NewSweepCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Fail slots stuck in posting",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := appFn(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			out := outputFn()

			if timeout <= 0 {
				timeout = a.Config.Posting.StuckTimeout
			}

			ids, err := a.Claimer.SweepStuck(ctx, timeout)
			if err != nil {
				return err
			}

			rows := make([][]string, len(ids))
			for i, id := range ids {
				rows[i] = []string{id.String()}
			}
			out.Success(fmt.Sprintf("Swept %d stuck slot(s)", len(ids)))
			out.Print([]string{"SLOT ID"}, rows, map[string]any{"swept": ids})
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Posting age considered stuck (default: posting.stuckTimeout)")

	return cmd
}
