package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wasabipesto/niceengine/internal/clientlib"
	"github.com/wasabipesto/niceengine/internal/engine"
	"github.com/wasabipesto/niceengine/pkg/models"
)

// Exit codes: 0 success, 1 unrecoverable error (retries exhausted, network
// down, GPU init failure), 2 invalid arguments (bad flags, missing server
// URL).
const (
	exitOK        = 0
	exitTransient = 1
	exitConfig    = 2
)

var rootCmd = &cobra.Command{
	Use:   "niceworker",
	Short: "Worker client for the distributed nice-number search",
	Long: `niceworker claims fields from a niceengine coordination service, scans
them for square-cube pandigital ("nice") numbers, and submits the results
back.`,
}

func main() {
	rootCmd.AddCommand(runCmd(), benchCmd())
	if err := rootCmd.Execute(); err != nil {
		// Runtime failures inside RunE bodies exit directly with their own
		// codes, so an error surfacing here is a cobra-level parse failure:
		// an unknown flag or subcommand, i.e. invalid arguments. cobra has
		// already printed the error and usage.
		os.Exit(exitConfig)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Claim and process fields until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, _ := cmd.Flags().GetString("server")
			mode, _ := cmd.Flags().GetString("mode")
			policy, _ := cmd.Flags().GetString("policy")
			username, _ := cmd.Flags().GetString("username")
			threads, _ := cmd.Flags().GetInt("threads")
			maxFields, _ := cmd.Flags().GetInt("max-fields")
			repeat, _ := cmd.Flags().GetBool("repeat")
			validate, _ := cmd.Flags().GetBool("validate")
			useGPU, _ := cmd.Flags().GetBool("gpu")
			gpuDevice, _ := cmd.Flags().GetInt("gpu-device")
			noProgress, _ := cmd.Flags().GetBool("no-progress")
			maxRetries, _ := cmd.Flags().GetInt("api-max-retries")
			logLevel, _ := cmd.Flags().GetString("log-level")
			batchSize, _ := cmd.Flags().GetInt("batch-size")

			serverURL = envOrFlag("NICE_API_BASE", envOrFlag("NICE_SERVER_URL", serverURL))
			// --username and --mode have non-empty defaults, so their env vars
			// apply whenever the flag was not given explicitly.
			if v := os.Getenv("NICE_USERNAME"); v != "" && !cmd.Flags().Changed("username") {
				username = v
			}
			if v := os.Getenv("NICE_MODE"); v != "" && !cmd.Flags().Changed("mode") {
				mode = v
			}
			logLevel = envOrFlag("NICE_LOG_LEVEL", logLevel)
			repeat = envOrBoolFlag("NICE_REPEAT", repeat)
			validate = envOrBoolFlag("NICE_VALIDATE", validate)
			useGPU = envOrBoolFlag("NICE_GPU", useGPU)
			noProgress = envOrBoolFlag("NICE_NO_PROGRESS", noProgress)
			threads = envOrIntFlag("NICE_THREADS", threads)
			gpuDevice = envOrIntFlag("NICE_GPU_DEVICE", gpuDevice)
			maxRetries = envOrIntFlag("NICE_API_MAX_RETRIES", maxRetries)

			if logLevel != "" {
				fmt.Printf("niceworker: log level %s\n", logLevel)
			}

			if serverURL == "" {
				fmt.Fprintln(os.Stderr, "Error: --server or NICE_API_BASE is required")
				os.Exit(exitConfig)
			}

			searchMode := models.Mode(mode)
			if searchMode != models.ModeDetailed && searchMode != models.ModeNiceOnly {
				fmt.Fprintf(os.Stderr, "Error: --mode must be 'detailed' or 'niceonly', got %q\n", mode)
				os.Exit(exitConfig)
			}

			var gpu engine.DigitScanner
			if useGPU {
				scanner, err := engine.NewGPUScanner(gpuDevice)
				if err != nil {
					// GPU init failure at startup is fatal: the operator
					// explicitly asked for GPU acceleration.
					fmt.Fprintf(os.Stderr, "Error: GPU init failed: %v\n", err)
					os.Exit(exitTransient)
				}
				gpu = scanner
			}

			client := clientlib.NewAPIClient(clientlib.Config{BaseURL: serverURL})
			pipeline := clientlib.NewPipeline(client, clientlib.PipelineOptions{
				Mode:          searchMode,
				Policy:        policy,
				Username:      username,
				ClientVersion: workerVersion,
				Threads:       threads,
				GPU:           gpu,
				Validate:      validate,
				MaxRetries:    maxRetries,
				ShowProgress:  !noProgress,
				// batch_size > 1 means the operator wants more than one field
				// in flight at a time: claim the next field and submit the
				// previous one concurrently with processing the current one.
				Concurrent: batchSize > 1,
			})

			if repeat {
				maxFields = 0
			} else if maxFields == 0 {
				maxFields = 1
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := pipeline.Run(ctx, maxFields); err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "worker stopped: %v\n", err)
				os.Exit(exitTransient)
			}
			fmt.Printf("fields claimed: %d, solved: %d, validation failures: %d\n",
				pipeline.FieldsClaimed(), pipeline.FieldsSolved(), pipeline.ValidationFailures())
			return nil
		},
	}

	cmd.Flags().String("server", "", "coordination service base URL (or NICE_API_BASE)")
	cmd.Flags().String("mode", string(models.ModeNiceOnly), "search mode: detailed or niceonly (or NICE_MODE)")
	cmd.Flags().String("policy", "", "claim selection policy: normal, thin, prioritized")
	cmd.Flags().String("username", "anonymous", "attribution name for submissions (or NICE_USERNAME)")
	cmd.Flags().Int("threads", 0, "worker threads, 0 = GOMAXPROCS (or NICE_THREADS)")
	cmd.Flags().Int("max-fields", 0, "stop after this many fields; ignored when --repeat is set")
	cmd.Flags().Bool("repeat", false, "claim fields indefinitely until stopped (or NICE_REPEAT)")
	cmd.Flags().Bool("validate", false, "cross-check against the field's canon submission before submitting (or NICE_VALIDATE)")
	cmd.Flags().Bool("gpu", false, "use GPU-accelerated digit-scan kernels (or NICE_GPU)")
	cmd.Flags().Int("gpu-device", 0, "GPU device index (or NICE_GPU_DEVICE)")
	cmd.Flags().Bool("no-progress", false, "suppress progress output (or NICE_NO_PROGRESS)")
	cmd.Flags().Int("api-max-retries", 0, "claim/submit retry attempt cap, 0 = engine default of 10 (or NICE_API_MAX_RETRIES)")
	cmd.Flags().String("log-level", "", "log verbosity (or NICE_LOG_LEVEL)")
	cmd.Flags().Int("batch-size", 1, "fields kept in flight at once; >1 pipelines claim/submit with processing")
	return cmd
}

// benchCmd runs one of the four fixed (range_size, base) pairs
// (default|large|extra-large|hi-base) historically used to compare engine
// throughput across machines, anchored at the same starting offset so runs
// are comparable across hosts.
func benchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a fixed benchmark mode and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			threads, _ := cmd.Flags().GetInt("threads")
			mode, _ := cmd.Flags().GetString("benchmark")
			if v := os.Getenv("NICE_BENCHMARK"); v != "" && !cmd.Flags().Changed("benchmark") {
				mode = v
			}
			threads = envOrIntFlag("NICE_THREADS", threads)

			r, err := runBenchmark(mode, threads)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(exitConfig)
			}
			fmt.Printf("mode=%-12s base=%-4d range_size=%-12d elapsed=%-10s rate=%.0f/s\n",
				r.Name, r.Base, r.RangeSize, r.Elapsed.Round(time.Millisecond), r.Rate)
			return nil
		},
	}
	cmd.Flags().Int("threads", 0, "worker threads, 0 = GOMAXPROCS (or NICE_THREADS)")
	cmd.Flags().String("benchmark", "default", "benchmark mode: default, large, extra-large, hi-base (or NICE_BENCHMARK)")
	return cmd
}

func envOrFlag(envKey, flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envKey)
}

// envOrBoolFlag lets an env var turn a flag on but never silently turns one
// off: an explicit --flag always wins over an unset/false env var.
func envOrBoolFlag(envKey string, flagVal bool) bool {
	if flagVal {
		return true
	}
	v, err := strconv.ParseBool(os.Getenv(envKey))
	return err == nil && v
}

func envOrIntFlag(envKey string, flagVal int) int {
	if flagVal != 0 {
		return flagVal
	}
	v, err := strconv.Atoi(os.Getenv(envKey))
	if err != nil {
		return flagVal
	}
	return v
}

const workerVersion = "niceworker/1.0"
