package cli

import (
	"github.com/spf13/cobra"
)

// NewAssertSLACmd — herald assert-sla: проверка заполненности сегодня/завтра.
func NewAssertSLACmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var todayMin, tomorrowMin int

	cmd := &cobra.Command{
		Use:   "assert-sla",
		Short: "Check that today and tomorrow have enough filled slots",
		Long: "Prints \"Today: X/6\" and \"Tomorrow: Y/6\". On breach prints the\n" +
			"remediation commands, sends the alert if configured, and exits 1.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := appFn(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			out := outputFn()

			if !cmd.Flags().Changed("today-min") {
				todayMin = a.Config.SLA.TodayMin
			}
			if !cmd.Flags().Changed("tomorrow-min") {
				tomorrowMin = a.Config.SLA.TomorrowMin
			}

			report, err := a.Guard.AssertSLA(ctx, a.Now(), todayMin, tomorrowMin)
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(report)
			} else {
				for _, line := range report.Lines() {
					out.Line("%s", line)
				}
				if report.Remediation != nil {
					out.Line("")
					out.Line("%s", report.Remediation.Message)
				}
			}

			if !report.Passed {
				return ErrBlocking
			}
			out.Success("SLA OK")
			return nil
		},
	}

	cmd.Flags().IntVar(&todayMin, "today-min", 6, "Minimum filled slots today")
	cmd.Flags().IntVar(&tomorrowMin, "tomorrow-min", 6, "Minimum filled slots tomorrow")

	return cmd
}
