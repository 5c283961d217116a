package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/assistantstream/chunk"
	"github.com/hupe1980/assistantstream/encoding"
	"github.com/hupe1980/assistantstream/metrics"
	"github.com/hupe1980/assistantstream/model"
	"github.com/hupe1980/assistantstream/run"
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Run a single prompt and print the streamed answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")

		var enc encoding.Encoder
		if format != "" {
			if enc, err = encoding.ForFormat(format); err != nil {
				return err
			}
		}

		a, err := newApp(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		messages := []model.Message{{Role: model.RoleUser, Content: strings.Join(args, " ")}}
		stream := a.runs.CreateRun(context.WithoutCancel(ctx), a.agent.Callback(messages))
		defer func() { _ = stream.Close(context.Background()) }()

		start := time.Now()
		var chunks int
		if enc != nil {
			chunks, err = printEncoded(ctx, cmd.OutOrStdout(), enc, stream)
		} else {
			chunks, err = printText(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), stream)
		}

		outcome := metrics.OutcomeCompleted
		if err != nil {
			outcome = metrics.OutcomeError
		}
		a.logger.LogRun(stream.ID(), outcome, chunks, time.Since(start), err)
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("format", "f", "", "Print raw frames in this wire format (data-stream, sse)")
}

// printText writes text deltas to out and tool activity to errOut.
func printText(ctx context.Context, out, errOut io.Writer, stream *run.Stream) (int, error) {
	n := 0
	for stream.Next(ctx) {
		n++
		switch c := stream.Current().(type) {
		case chunk.TextDelta:
			fmt.Fprint(out, c.TextDelta)
		case chunk.ToolCallBegin:
			fmt.Fprintf(errOut, "[tool %s %s]\n", c.ToolName, c.ToolCallID)
		case chunk.ToolResult:
			status := "ok"
			if c.IsError {
				status = "error"
			}
			fmt.Fprintf(errOut, "[tool %s %s]\n", c.ToolCallID, status)
		}
	}
	fmt.Fprintln(out)
	return n, stream.Err()
}

func printEncoded(ctx context.Context, out io.Writer, enc encoding.Encoder, stream *run.Stream) (int, error) {
	n := 0
	for stream.Next(ctx) {
		n++
		if err := enc.Encode(out, stream.Current()); err != nil {
			return n, err
		}
	}
	if err := stream.Err(); err != nil {
		return n, err
	}
	return n, enc.Finish(out)
}
