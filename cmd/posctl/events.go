package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
)

type eventsFlags struct {
	brokers    []string
	topic      string
	group      string
	fromOldest bool
	types      []string
}

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Work with receipt events",
	}

	var flags eventsFlags
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print receipt events as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runEventsTail(ctx, flags, cmd.OutOrStdout())
		},
	}
	f := tailCmd.Flags()
	f.StringSliceVar(&flags.brokers, "brokers", []string{"localhost:9092"}, "Kafka brokers")
	f.StringVar(&flags.topic, "topic", kafka.TopicReceiptEvents, "Topic with receipt events")
	f.StringVar(&flags.group, "group", "posctl", "Consumer group id")
	f.BoolVar(&flags.fromOldest, "from-beginning", false, "Read the topic from the oldest offset")
	f.StringSliceVar(&flags.types, "type", nil, "Only print these event types (receipt.saved, receipt.printed)")

	cmd.AddCommand(tailCmd)
	return cmd
}

func runEventsTail(ctx context.Context, flags eventsFlags, out io.Writer) error {
	types := make([]domain.ReceiptEventType, 0, len(flags.types))
	for _, t := range flags.types {
		types = append(types, domain.ReceiptEventType(strings.TrimSpace(t)))
	}

	consumer, err := kafka.NewConsumer(flags.brokers, flags.group, []string{flags.topic}, flags.fromOldest,
		eventPrinter(out), types...)
	if err != nil {
		return err
	}
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return consumer.Stop()
}

// eventPrinter пишет каждое событие отдельной строкой JSON.
func eventPrinter(out io.Writer) kafka.ReceiptHandler {
	var mu sync.Mutex
	enc := json.NewEncoder(out)
	return func(_ context.Context, event domain.ReceiptEvent) error {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		return nil
	}
}
