package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/rendis/flowcore/internal/engine"
	"github.com/rendis/flowcore/internal/healer"
	"github.com/rendis/flowcore/internal/streaming"
	"github.com/rendis/flowcore/pkg/schema"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a graph file once",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	cmd.Flags().StringP("input", "i", "", "Trigger payload as inline JSON")
	cmd.Flags().StringP("input-file", "f", "", "Trigger payload from a JSON or YAML file")
	cmd.Flags().String("batch", "", "Run once per payload in a JSON or YAML array file, concurrently")
	cmd.Flags().Bool("heal", false, "Repair the graph before running it")
	cmd.Flags().Bool("stream", false, "Print node status changes to stderr as they happen")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	g, err := loadGraph(args[0])
	if err != nil {
		return fileError(args[0], err)
	}

	inline, _ := cmd.Flags().GetString("input")
	inputFile, _ := cmd.Flags().GetString("input-file")
	input, err := parseInput(inline, inputFile)
	if err != nil {
		return exitError(exitInputParse, "%v", err)
	}
	var batch []any
	if batchFile, _ := cmd.Flags().GetString("batch"); batchFile != "" {
		if batch, err = parseBatch(batchFile); err != nil {
			return exitError(exitInputParse, "%v", err)
		}
	}

	if doHeal, _ := cmd.Flags().GetBool("heal"); doHeal {
		h, err := healer.New(nil)
		if err != nil {
			return err
		}
		var fixes []string
		g, fixes = h.Heal(g)
		for _, fix := range fixes {
			fmt.Fprintf(cmd.ErrOrStderr(), "fixed: %s\n", fix)
		}
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	errOut := &syncWriter{w: cmd.ErrOrStderr()}
	a, err := newApp(cmd.Context(), cfg, newLogger(cfg, errOut))
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}
	defer a.Close()

	if stream, _ := cmd.Flags().GetBool("stream"); stream {
		done, err := streamNodeEvents(cmd.Context(), errOut, a.hub)
		if err != nil {
			return err
		}
		defer done()
	}

	if batch != nil {
		return runBatch(cmd, a, g, batch)
	}

	rec, err := a.engine.Execute(cmd.Context(), g, input)
	if err != nil {
		return exitError(exitValidation, "graph cannot run: %v", err)
	}
	writeJSON(cmd.OutOrStdout(), rec)

	if rec.Status == schema.RunStatusFailed {
		return exitError(exitRuntime, "%s", engine.Summary(rec))
	}
	return nil
}

// runBatch prints the batch result and fails when any run failed.
func runBatch(cmd *cobra.Command, a *app, g schema.Graph, inputs []any) error {
	res, err := a.engine.ExecuteBatch(cmd.Context(), g, inputs)
	if res == nil {
		return exitError(exitValidation, "graph cannot run: %v", err)
	}
	writeJSON(cmd.OutOrStdout(), res)
	if err != nil {
		return exitError(exitRuntime, "batch interrupted: %v", err)
	}
	if n := res.Failed(); n > 0 {
		return exitError(exitRuntime, "%d of %d runs failed", n, len(res.Runs))
	}
	return nil
}

// streamNodeEvents prints every node transition to w until the returned
// func is called.
func streamNodeEvents(ctx context.Context, w io.Writer, hub streaming.Hub) (func(), error) {
	events, cancel, err := hub.Subscribe(ctx, streaming.Filter{})
	if err != nil {
		return nil, err
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range events {
			fmt.Fprintf(w, "[%s] %s: %s -> %s\n", e.RunID, e.NodeID, e.From, e.Status)
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}, nil
}

// syncWriter serializes writes from the logger and the event printer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
