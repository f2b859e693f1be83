// Herald CLI — генерация расписания, публикация и проверки SLA.
//
// Использование:
//
//	herald [--config FILE] [--json] <command> [flags]
//
// Команды:
//
//	generate     Расписание на день
//	precompute   Материализация окна дней (+ --heal)
//	post-due     Публикация наступившего слота
//	sweep        Закрытие зависших слотов
//	assert-sla   Проверка заполненности сегодня/завтра
//	backfill     Привязка публикаций к слотам
//	analyze      Отчёт о разнообразии
//	slots        Слоты дня
//	events       Чтение событий из RabbitMQ
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Herald/internal/app"
	"github.com/shaiso/Herald/internal/cli"
	"github.com/shaiso/Herald/internal/config"
	"github.com/shaiso/Herald/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var configPath string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "herald",
		Short:         "Herald — six-slot content schedule and posting engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default: $HERALD_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	appFn := func(ctx context.Context) (*app.App, error) {
		logger := telemetry.SetupLoggerTo(os.Stderr)

		config.LoadEnv(logger)
		path := configPath
		if path == "" {
			path = os.Getenv(config.EnvConfigPath)
		}
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		return app.New(ctx, cfg, logger, app.Options{})
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewGenerateCmd(appFn, outputFn),
		cli.NewPrecomputeCmd(appFn, outputFn),
		cli.NewPostDueCmd(appFn, outputFn),
		cli.NewSweepCmd(appFn, outputFn),
		cli.NewAssertSLACmd(appFn, outputFn),
		cli.NewBackfillCmd(appFn, outputFn),
		cli.NewAnalyzeCmd(appFn, outputFn),
		cli.NewSlotsCmd(appFn, outputFn),
		cli.NewEventsCmd(appFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, cli.ErrBlocking) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		cancel()
		os.Exit(1)
	}
}
