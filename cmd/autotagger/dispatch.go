package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aadesh/autotagger/internal/dispatch"
	"github.com/aadesh/autotagger/internal/event"
)

var dispatchTimeout time.Duration

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [FILE]",
	Short: "Dispatch one event read from FILE (or stdin) and print the result envelope",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().DurationVar(&dispatchTimeout, "timeout", 30*time.Second, "deadline for the whole dispatch")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	in := io.Reader(os.Stdin)
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read event: %w", err)
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.flush()

	ev, err := event.Normalize(data, a.loader.Config().Region)
	if err != nil {
		return err
	}
	ev.EnsureID()

	ctx, cancel := context.WithTimeout(cmd.Context(), dispatchTimeout)
	defer cancel()
	res := a.dispatcher.Dispatch(ctx, ev)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Response()); err != nil {
		return err
	}
	if res.Status == dispatch.StatusError {
		return fmt.Errorf("dispatch failed: %s", res.Error)
	}
	return nil
}
