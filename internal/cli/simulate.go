package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/crpt/internal/gate"
	"github.com/wesleyorama2/crpt/internal/logging"
	"github.com/wesleyorama2/crpt/internal/metrics"
	"github.com/wesleyorama2/crpt/internal/output"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive the admission gate with concurrent callers, without network calls",
		Long: `Start --callers goroutines at once against a gate of --capacity per
--window and print when each one was admitted.

  crpt simulate --capacity 3 --window 1s --callers 10`,
		Args: cobra.NoArgs,
		RunE: runSimulate,
	}

	flags := cmd.Flags()
	flags.Int("capacity", 3, "Admissions allowed per window")
	flags.Duration("window", time.Second, "Rate limit window")
	flags.Int("callers", 10, "Concurrent callers")
	flags.Duration("timeout", 0, "Give up waiting after this long (0 waits forever)")

	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	capacity, _ := cmd.Flags().GetInt("capacity")
	window, _ := cmd.Flags().GetDuration("window")
	callers, _ := cmd.Flags().GetInt("callers")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	level, _ := cmd.Flags().GetString("log-level")

	if callers < 1 {
		return fmt.Errorf("callers must be at least 1, got %d", callers)
	}

	logger, err := logging.New(logging.Config{Level: level, Output: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer logger.Sync()

	g, err := gate.New(capacity, window, gate.WithLogger(logger.Named("gate")))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	recorder := metrics.NewRecorder()
	admissions := make([]output.Admission, callers)
	start := time.Now()

	var eg errgroup.Group
	for i := range admissions {
		eg.Go(func() error {
			queued := time.Now()
			err := g.Acquire(ctx)
			wait := time.Since(queued)
			admissions[i] = output.Admission{
				Caller: i + 1,
				Offset: time.Since(start),
				Wait:   wait,
				Err:    err,
			}
			if err == nil {
				recorder.RecordWait(wait)
			} else {
				recorder.RecordRejected()
			}
			return nil
		})
	}
	_ = eg.Wait()

	fmt.Fprint(cmd.OutOrStdout(), newFormatter(cmd).FormatSimulation(admissions, recorder.Snapshot(), g.Stats()))
	return nil
}
