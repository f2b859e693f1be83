package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/shaiso/Herald/internal/mq"
)

// NewEventsCmd — herald events: чтение очереди событий слотов.
func NewEventsCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var queue string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail slot lifecycle events from the broker",
		Long:  "Consumes a herald queue and prints each event until interrupted.\n\n" + mq.TopologyInfo(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := appFn(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			out := outputFn()

			if a.Broker == nil {
				return errors.New("broker is not configured (set RABBITMQ_URL)")
			}

			consumer := mq.NewConsumer(a.Broker, mq.ConsumerConfig{
				Queue:   mq.Queue(queue),
				Handler: printEvent(out),
				Logger:  a.Logger,
			})
			err = consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&queue, "queue", string(mq.QueueSlotsFailed), "Queue to read")

	return cmd
}

func printEvent(out *Output) mq.Handler {
	return func(_ context.Context, msg mq.Message) error {
		if out.JSONMode() {
			out.JSON(msg)
			return nil
		}
		ev, err := msg.SlotEvent()
		if err != nil {
			out.Line("%s %s %s", msg.Timestamp.Format("2006-01-02T15:04:05Z07:00"), msg.Type, string(msg.Payload))
			return nil
		}
		out.Line("%s %s %s #%d %s %s", ev.At.Format("2006-01-02T15:04:05Z07:00"), msg.Type, ev.Date, ev.SlotIndex,
			dash(ev.Platform), dash(ev.Reasoning))
		return nil
	}
}

