package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/schedule"
)

// NewGenerateCmd — herald generate: расписание на один день.
func NewGenerateCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var (
		date  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the six-slot schedule for a day",
		Long: "Creates the day's six slots and fills them from the content pool.\n" +
			"An existing day is left untouched unless --force is given, which\n" +
			"reassigns content of pending slots only.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := appFn(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			out := outputFn()

			day, err := dateOrDefault(date, a.Now(), 1)
			if err != nil {
				return err
			}

			res, err := a.Generator.Generate(ctx, day, schedule.Options{ForceRefill: force})
			if err != nil {
				return err
			}

			out.Success(generateSummary(res))
			out.Print(slotHeaders(), slotRows(res.Slots), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day YYYY-MM-DD in ET (default: tomorrow)")
	cmd.Flags().BoolVar(&force, "force", false, "Reassign content of pending slots on an existing day")

	return cmd
}

// NewPrecomputeCmd — herald precompute: материализация окна дней.
func NewPrecomputeCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var (
		from     string
		days     int
		heal     bool
		attempts int
	)

	cmd := &cobra.Command{
		Use:   "precompute",
		Short: "Materialize schedules for upcoming days",
		Long: "Ensures every day in the window has six rows and fills empty pending\n" +
			"slots in place. With --heal the window is then checked for diversity\n" +
			"gaps and bad days are regenerated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := appFn(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			out := outputFn()

			start, err := dateOrDefault(from, a.Now(), 0)
			if err != nil {
				return err
			}
			if days <= 0 {
				days = a.Config.Schedule.DaysAhead
			}

			opts := schedule.PrecomputeOptions{DaysAhead: days, MaxAttempts: attempts}
			if heal {
				opts.Healer = a.Healer
			}

			res, err := a.Generator.Precompute(ctx, start, opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(res.Days))
			for i, d := range res.Days {
				rows[i] = []string{
					d.Date,
					strconv.Itoa(d.Created),
					strconv.Itoa(d.Assigned),
					fmt.Sprintf("%d/%d", d.Filled, domain.SlotsPerDay),
					strconv.FormatBool(d.Exhausted),
				}
			}
			out.Print([]string{"DATE", "CREATED", "ASSIGNED", "FILLED", "EXHAUSTED"}, rows, res)

			if res.Heal != nil {
				out.Success(fmt.Sprintf("Heal: %d day(s) with gaps, %d healed, %d attempt(s), %d gap(s) remaining",
					res.Heal.DatesWithGaps, res.Heal.DatesHealed, res.Heal.Attempts, res.Heal.RemainingGaps))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day YYYY-MM-DD in ET (default: today)")
	cmd.Flags().IntVar(&days, "days", 0, "Number of days (default: schedule.daysAhead)")
	cmd.Flags().BoolVar(&heal, "heal", false, "Heal diversity gaps after materializing")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Regeneration attempts per day when healing")

	return cmd
}

// NewSlotsCmd — herald slots: строки расписания за день.
func NewSlotsCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List a day's slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := appFn(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			out := outputFn()

			day, err := dateOrDefault(date, a.Now(), 0)
			if err != nil {
				return err
			}

			slots, err := a.Store.ListSlotsByDate(ctx, day)
			if err != nil {
				return err
			}
			if len(slots) == 0 {
				out.Success("No slots for " + day)
			}
			out.Print(slotHeaders(), slotRows(slots), slots)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day YYYY-MM-DD in ET (default: today)")

	return cmd
}

func generateSummary(res *schedule.Result) string {
	if res.Skipped {
		return fmt.Sprintf("Schedule for %s already exists (%d/%d filled), nothing changed",
			res.Date, res.Filled, domain.SlotsPerDay)
	}
	msg := fmt.Sprintf("Schedule for %s: %d created, %d assigned, %d/%d filled",
		res.Date, res.Created, res.Assigned, res.Filled, domain.SlotsPerDay)
	if res.Exhausted {
		msg += " (content pool exhausted)"
	}
	return msg
}
