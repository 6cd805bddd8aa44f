package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/critic/internal/config"
	"github.com/dshills/critic/internal/fanout"
	"github.com/dshills/critic/internal/logging"
	"github.com/dshills/critic/internal/output"
	"github.com/dshills/critic/internal/providers"
)

// Fan-out flags
var (
	flagPrompts        []string
	flagPromptsFile    string
	flagFailFast       bool
	flagMaxConcurrency int
)

// demoPrompts are streamed when no prompt is given.
var demoPrompts = []string{
	"Tell me a joke about a developer who is trying to center a div.",
	"Write a short story about a rubber duck who is having an existential crisis.",
	"Explain the meaning of life in one sentence, but make it sound like a threat.",
	"Write a passive-aggressive error message for a user who forgot to save their work.",
}

const completionMessage = "All tasks are complete."

func newFanoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fanout [prompt...]",
		Short: "Stream several Gemini prompts concurrently",
		Long: "Fanout sends every prompt to Gemini at once and prints each response " +
			"fragment as it arrives, prefixed with the number of the prompt it belongs to.",
		RunE:    runFanout,
		Version: version,
	}

	f := cmd.Flags()
	f.StringArrayVarP(&flagPrompts, "prompt", "p", nil, "Prompt to send (repeatable)")
	f.StringVar(&flagPromptsFile, "prompts-file", "", "File with one prompt per line; blank and # lines are skipped")
	f.StringVar(&flagModel, "model", "", "Gemini model name")
	f.IntVar(&flagTimeout, "timeout", 0, "Per-prompt timeout in seconds")
	f.BoolVar(&flagFailFast, "fail-fast", false, "Cancel the remaining prompts after the first failure")
	f.IntVar(&flagMaxConcurrency, "max-concurrency", 0, "Maximum prompts streamed at once (0 = all)")
	f.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	return cmd
}

func fanoutOverrides() map[string]string {
	m := make(map[string]string)
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagTimeout > 0 {
		m["timeoutSeconds"] = strconv.Itoa(flagTimeout)
	}
	if flagMaxConcurrency > 0 {
		m["maxConcurrency"] = strconv.Itoa(flagMaxConcurrency)
	}
	return m
}

func runFanout(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(fanoutOverrides())
	if err != nil {
		return err
	}
	prompts, err := collectPrompts(args, flagPrompts, flagPromptsFile, cfg.Prompts)
	if err != nil {
		return err
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	logger, closeLog, err := logging.New(stderr, logging.Options{Debug: flagDebug, RunID: uuid.NewString()})
	if err != nil {
		return err
	}
	defer closeLog()
	ctx := logging.WithLogger(cmd.Context(), logger)

	info(stderr, "Initializing Gemini Processor...")
	gen, err := newGenerator("gemini", cfg.Model)
	if err != nil {
		return fail(stderr, exitFor(err), err)
	}

	printer := output.NewStreamPrinter(stdout)
	coord := &fanout.Coordinator{
		Source:         gen,
		Observer:       printer,
		Timeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
		FailFast:       flagFailFast,
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         logger,
	}

	info(stderr, "Starting parallel generation of %d prompts...", len(prompts))
	results, runErr := coord.RunAll(ctx, prompts)
	if err := printer.Err(); err != nil {
		return fail(stderr, ExitRuntimeError, err)
	}

	completed, failed := fanout.Count(results)
	logging.FromContext(ctx).Info("fan-out finished", "completed", completed, "failed", failed)
	fmt.Fprintln(stdout, completionMessage)
	if failed > 0 {
		warning(stderr, "%d of %d prompts failed", failed, len(results))
	}

	if runErr != nil {
		if providers.IsAuthError(runErr) {
			exitCode = ExitAuthError
		} else {
			exitCode = ExitAPIFailure
		}
	}
	return nil
}

// collectPrompts returns positional prompts, then --prompt values, then the
// prompts file. With none of them it falls back to the configured prompts
// and finally to the demo set.
func collectPrompts(args, flagged []string, file string, configured []string) ([]string, error) {
	prompts := append(append([]string(nil), args...), flagged...)
	if file != "" {
		fromFile, err := readPromptsFile(file)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, fromFile...)
	}
	if len(prompts) == 0 {
		prompts = configured
	}
	if len(prompts) == 0 {
		prompts = demoPrompts
	}
	return prompts, nil
}

func readPromptsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompts file: %w", err)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading prompts file: %w", err)
	}
	return prompts, nil
}
