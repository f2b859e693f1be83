package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Herald/internal/diversity"
	"github.com/shaiso/Herald/internal/slottime"
)

// NewAnalyzeCmd — herald analyze: разнообразие расписания по дням.
func NewAnalyzeCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var (
		from     string
		to       string
		heal     bool
		attempts int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report diversity gaps and scores per day",
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
			end := to
			if end == "" {
				if end, err = slottime.AddDays(start, a.Config.Schedule.DaysAhead-1); err != nil {
					return err
				}
			}

			if heal {
				hr, err := a.Healer.Heal(ctx, start, end, attempts)
				if err != nil {
					return err
				}
				printHeal(out, hr)
				return nil
			}

			report, err := a.Analyzer.Analyze(ctx, start, end)
			if err != nil {
				return err
			}
			printAnalysis(out, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day YYYY-MM-DD in ET (default: today)")
	cmd.Flags().StringVar(&to, "to", "", "Last day, inclusive (default: from + schedule.daysAhead - 1)")
	cmd.Flags().BoolVar(&heal, "heal", false, "Regenerate days with gaps")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Regeneration attempts per day")

	return cmd
}

func printAnalysis(out *Output, r *diversity.Report) {
	if out.JSONMode() {
		out.JSON(r)
		return
	}

	rows := make([][]string, len(r.Days))
	var gapRows [][]string
	for i, d := range r.Days {
		rows[i] = []string{
			d.Date,
			strconv.Itoa(d.Filled),
			strconv.FormatFloat(d.Score, 'f', 1, 64),
			platformCounts(d.PlatformCounts),
			strconv.Itoa(len(d.Gaps)),
		}
		for _, g := range d.Gaps {
			gapRows = append(gapRows, []string{
				g.Date, string(g.Type), g.Platform, intsJoin(g.SlotIndexes), strconv.Itoa(g.Severity), g.Detail,
			})
		}
	}
	out.Table([]string{"DATE", "FILLED", "SCORE", "PLATFORMS", "GAPS"}, rows)

	if len(gapRows) > 0 {
		out.Line("")
		out.Table([]string{"DATE", "TYPE", "PLATFORM", "SLOTS", "SEVERITY", "DETAIL"}, gapRows)
	}
	out.Success(fmt.Sprintf("%d gap(s) in %s..%s", r.TotalGaps, r.From, r.To))
}

func printHeal(out *Output, hr *diversity.HealReport) {
	rows := make([][]string, len(hr.Dates))
	for i, d := range hr.Dates {
		rows[i] = []string{
			d.Date,
			strconv.Itoa(d.GapsBefore),
			strconv.Itoa(d.GapsAfter),
			fmt.Sprintf("%.1f → %.1f", d.ScoreBefore, d.ScoreAfter),
			strconv.Itoa(d.Attempts),
			strconv.FormatBool(d.Healed),
			dash(d.Error),
		}
	}
	out.Print([]string{"DATE", "GAPS BEFORE", "GAPS AFTER", "SCORE", "ATTEMPTS", "HEALED", "ERROR"}, rows, hr)
}

func platformCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return dash(strings.Join(parts, ","))
}

func intsJoin(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
