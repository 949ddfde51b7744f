package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	grpcsvc "github.com/vladislavdragonenkov/pos/internal/service/grpc"
)

type printerCall func(ctx context.Context, c *grpcsvc.PrinterClient) (*structpb.Struct, error)

func newPrinterCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "printer",
		Short: "Control the receipt printer through the gRPC API",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "localhost:50051", "gRPC address of the POS server")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 45*time.Second, "Call timeout")

	simple := func(use, short string, call printerCall) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runPrinterCall(cmd.Context(), addr, timeout, cmd.OutOrStdout(), call)
			},
		}
	}

	cmd.AddCommand(
		simple("status", "Show printer status", func(ctx context.Context, c *grpcsvc.PrinterClient) (*structpb.Struct, error) {
			return c.Status(ctx)
		}),
		simple("connect", "Discover and connect the printer", func(ctx context.Context, c *grpcsvc.PrinterClient) (*structpb.Struct, error) {
			return c.Connect(ctx)
		}),
		simple("disconnect", "Disconnect the printer", func(ctx context.Context, c *grpcsvc.PrinterClient) (*structpb.Struct, error) {
			return c.Disconnect(ctx)
		}),
		simple("test", "Print a test page", func(ctx context.Context, c *grpcsvc.PrinterClient) (*structpb.Struct, error) {
			return c.TestPrint(ctx)
		}),
		&cobra.Command{
			Use:   "print <receipt-id>",
			Short: "Print a saved receipt",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid receipt id %q", args[0])
				}
				return runPrinterCall(cmd.Context(), addr, timeout, cmd.OutOrStdout(),
					func(ctx context.Context, c *grpcsvc.PrinterClient) (*structpb.Struct, error) {
						return c.PrintReceipt(ctx, id)
					})
			},
		},
	)
	return cmd
}

func runPrinterCall(ctx context.Context, addr string, timeout time.Duration, out io.Writer, call printerCall) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := call(ctx, grpcsvc.NewPrinterClient(conn))
	if err != nil {
		return err
	}
	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(res)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
