package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is stamped at build time.
	Version = "dev"

	flags struct {
		configDir string
		data      string
		date      string
		tickMode  string
		storage   string
		script    string
		verbose   bool
	}
)

var rootCmd = &cobra.Command{
	Use:   "timeslider",
	Short: "Day-based recording timeline with a playback marker per track",
	Long: `timeslider loads a recorder export and shows one day of recordings per
track. Commands are read line by line from stdin (or --script): activate a
block to place a marker, let it play, zoom, switch days and add overlays.
Type "help" for the command list.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.configDir, "config-dir", "c", ".",
		"Directory containing timeslider.cfg.json")
	rootCmd.PersistentFlags().StringVarP(&flags.data, "data", "d", "",
		"Recorder export to load (overrides data.path)")
	rootCmd.PersistentFlags().StringVar(&flags.date, "date", "",
		"Initial day as YYYY-MM-DD (overrides timeline.date)")
	rootCmd.PersistentFlags().StringVarP(&flags.tickMode, "tick-mode", "t", "",
		"Marker tick source: timer, frame or manual (overrides marker.tickMode)")
	rootCmd.PersistentFlags().StringVar(&flags.storage, "storage", "",
		"Marker state backend: memory, sqlite or postgres (overrides storage.type)")
	rootCmd.PersistentFlags().StringVarP(&flags.script, "script", "s", "",
		"Read commands from this file instead of stdin")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false,
		"Print every marker move")
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(cmd *cobra.Command) {
	overrides := map[string]string{
		"data":      "data.path",
		"date":      "timeline.date",
		"tick-mode": "marker.tickMode",
		"storage":   "storage.type",
	}
	for flag, key := range overrides {
		f := cmd.Flags().Lookup(flag)
		if f != nil && f.Changed {
			viper.Set(key, f.Value.String())
		}
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cmd, os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()

	var in io.Reader = os.Stdin
	if flags.script != "" {
		f, err := os.Open(flags.script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		in = f
	}

	return runREPL(ctx, in, os.Stdout, a.dispatcher)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
