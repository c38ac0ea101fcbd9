package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coreman2200/edream/internal/ambient"
	diag "github.com/coreman2200/edream/internal/diagnostics"
	"github.com/coreman2200/edream/internal/metrics"
)

var (
	ambientDriver string
	ambientRate   float64
)

var ambientCmd = &cobra.Command{
	Use:   "ambient",
	Short: "Bias-light strip commands",
}

var ambientTestCmd = &cobra.Command{
	Use:   "test [pattern]",
	Short: "Drive a wiring test pattern to the ambient strip",
	Long:  "Patterns: " + strings.Join(kindNames(), ", "),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ambientRate <= 0 {
			return fmt.Errorf("--rate must be > 0")
		}
		c := cfg.Ambient
		if ambientDriver != "" {
			c.Driver = ambientDriver
		}
		drv, err := ambient.Open(c, log.Logger, func(d diag.Diagnostic) {
			log.Warn().Str("code", d.Code).Str("detail", d.Detail).Msg(d.Summary)
		})
		if err != nil {
			return err
		}
		if drv == nil {
			return fmt.Errorf("ambient driver is off; pass --driver sim or spi")
		}
		out := ambient.NewOutput(c, drv, metrics.New(nil), log.Logger)
		defer out.Close()
		if err := out.RunPattern(ambient.Kind(args[0])); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		tick := time.NewTicker(time.Duration(float64(time.Second) / ambientRate))
		defer tick.Stop()
		for out.Testing() {
			select {
			case <-ctx.Done():
				return nil
			case <-tick.C:
				if err := out.Update(nil); err != nil {
					return err
				}
			}
		}
		log.Info().Str("pattern", args[0]).Msg("ambient test done")
		return nil
	},
}

func init() {
	ambientTestCmd.Flags().StringVar(&ambientDriver, "driver", "", "override ambient.driver: sim | spi")
	ambientTestCmd.Flags().Float64Var(&ambientRate, "rate", 4, "pattern steps per second")
	ambientCmd.AddCommand(ambientTestCmd)
}

func kindNames() []string {
	var names []string
	for _, k := range ambient.Kinds() {
		names = append(names, string(k))
	}
	return names
}
