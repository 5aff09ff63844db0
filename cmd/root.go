package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/litmus-rt/unit-trace/trace/pedf"
)

// version is overridden at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var (
	// CLI flags for reading and merging
	bufferSize int    // Per-file reorder window, in records
	parallel   bool   // Decode each trace file on its own goroutine
	configPath string // Optional YAML defaults file
	logLevel   string // Log verbosity level

	// CLI flags for filtering
	skipCount    int    // Drop the first N events
	maxCount     int    // Stop after N events
	earliestID   uint64 // Drop events before this id
	latestID     uint64 // Stop after this id
	sanitizeMode bool   // Repair known tracer quirks

	// CLI flags for analysis and output
	progress        bool   // Log progress to stderr
	printRecords    bool   // Print every record to stdout
	checkPEDF       bool   // Run the P-EDF conformance checker
	inversionTopK   int    // Number of longest inversions to report, -1 disables
	statsYAML       bool   // Print inversion statistics as YAML
	timerResolution uint64 // Time bucket width in trace time units
	firstRealJob    int32  // First job number that is analyzed
	clusterSize     int    // CPUs per partition
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "unit-trace",
	Short: "Offline analysis of LITMUS^RT scheduler traces",
}

// analyzeCmd merges the given per-CPU trace files and runs the selected stages
var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] FILE...",
	Short: "Merge per-CPU trace files and check them for P-EDF conformance",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		if progress && level < logrus.InfoLevel {
			level = logrus.InfoLevel
		}
		logrus.SetLevel(level)

		opts := optionsFromFlags()
		if configPath != "" {
			fc, err := loadConfig(configPath)
			if err != nil {
				logrus.Fatalf("Failed to load config: %v", err)
			}
			fc.apply(cmd, &opts)
		}

		runID := uuid.NewString()
		logrus.WithField("run", runID).Infof("Analyzing %d trace files, buffer=%d, timer resolution=%d",
			len(args), opts.Buffer, opts.Checker.TimerResolution)

		if err := runAnalysis(context.Background(), runID, opts, args, cmd.OutOrStdout()); err != nil {
			var perr *pedf.ProtocolError
			if errors.As(err, &perr) {
				logrus.Fatalf("Inconsistent trace at event %d (%s): %s", perr.ID, perr.TypeName, perr.Reason)
			}
			logrus.Fatalf("Analysis failed: %v", err)
		}
	},
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "unit-trace", version)
	},
}

// optionsFromFlags collects the flag values into analysis options.
func optionsFromFlags() Options {
	return Options{
		Buffer:         bufferSize,
		Parallel:       parallel,
		Skip:           skipCount,
		Max:            maxCount,
		Earliest:       earliestID,
		Latest:         latestID,
		Sanitize:       sanitizeMode,
		Progress:       progress,
		Print:          printRecords,
		PEDF:           checkPEDF,
		InversionStats: inversionTopK,
		StatsYAML:      statsYAML,
		Checker: pedf.Config{
			TimerResolution: timerResolution,
			FirstRealJob:    firstRealJob,
			ClusterSize:     clusterSize,
		},
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	defaults := pedf.DefaultConfig()

	analyzeCmd.Flags().IntVar(&bufferSize, "buffer", 200, "Records buffered per file to correct out-of-order timestamps")
	analyzeCmd.Flags().BoolVar(&parallel, "parallel", false, "Decode each trace file on its own goroutine")
	analyzeCmd.Flags().StringVar(&configPath, "config", "", "YAML file with analysis defaults")
	analyzeCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Filters
	analyzeCmd.Flags().IntVar(&skipCount, "skip", 0, "Skip the first N event records")
	analyzeCmd.Flags().IntVar(&maxCount, "max", 0, "Stop after N event records (0 = no limit)")
	analyzeCmd.Flags().Uint64Var(&earliestID, "earliest", 0, "Drop event records with an id below this one")
	analyzeCmd.Flags().Uint64Var(&latestID, "latest", 0, "Stop after the event record with this id (0 = no limit)")
	analyzeCmd.Flags().BoolVar(&sanitizeMode, "sanitize", false, "Drop setup jobs and repair known tracer quirks")

	// Analysis and output
	analyzeCmd.Flags().BoolVar(&progress, "progress", false, "Log progress while reading")
	analyzeCmd.Flags().BoolVar(&printRecords, "print", false, "Print every event and anomaly")
	analyzeCmd.Flags().BoolVar(&checkPEDF, "pedf", false, "Check the trace for P-EDF conformance")
	analyzeCmd.Flags().IntVar(&inversionTopK, "inversion-stats", -1, "Report inversion statistics and the K longest inversions (implies --pedf)")
	analyzeCmd.Flags().BoolVar(&statsYAML, "stats-yaml", false, "Print inversion statistics as YAML")
	analyzeCmd.Flags().Uint64Var(&timerResolution, "timer-resolution", defaults.TimerResolution, "Width of a scheduling time bucket, in trace time units")
	analyzeCmd.Flags().Int32Var(&firstRealJob, "first-real-job", defaults.FirstRealJob, "Jobs numbered below this are treated as task setup")
	analyzeCmd.Flags().IntVar(&clusterSize, "cluster-size", defaults.ClusterSize, "CPUs per partition")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}
