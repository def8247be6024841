package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gramckode/parallel-ssh/internal/config"
	"github.com/gramckode/parallel-ssh/internal/filter"
	"github.com/gramckode/parallel-ssh/internal/inventory"
	"github.com/gramckode/parallel-ssh/internal/logging"
	"github.com/gramckode/parallel-ssh/internal/output"
	"github.com/gramckode/parallel-ssh/internal/progress"
	"github.com/gramckode/parallel-ssh/internal/ssh"
	"github.com/gramckode/parallel-ssh/internal/stats"
	"github.com/gramckode/parallel-ssh/internal/supervisor"
	"github.com/gramckode/parallel-ssh/internal/target"
	"github.com/gramckode/parallel-ssh/internal/template"

	"github.com/spf13/cobra"
)

var (
	// Build-time variables (set via -ldflags)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	// Global configuration
	cfg *config.Config

	// CLI flags
	hosts         string
	hostFile      string
	inventoryFile string
	groupName     string
	filterExpr    string
	groupBy       string
	maxProcs      int
	timeout       time.Duration
	expectedExit  int
	sshBinary     string
	outputMode    string
	quiet         bool
	dryRun        bool
	logLevel      string
	logFormat     string
	showProgress  bool
	showStats     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "parallel-ssh [flags] -- <command>",
	Short: "Execute a command in parallel across multiple SSH hosts",
	Long: `parallel-ssh runs one shell command concurrently across a list of remote
hosts through the OpenSSH client in batch mode, bounding the number of
simultaneously running processes and optionally enforcing a per-host
wall-clock timeout.

Each host is classified exactly once: a success when its command exits with
the expected code, otherwise a failure carrying the unexpected exit code or
a timeout marker.

Examples:
  # Execute command on hosts from command line
  parallel-ssh --hosts "host1,host2" -- uptime

  # Execute command on hosts from file, 8 at a time
  parallel-ssh --hostfile hosts.txt --max-procs 8 -- "df -h"

  # Kill and classify hosts still running after 30 seconds
  parallel-ssh --hosts "host1,host2" --timeout 30s -- "systemctl restart nginx"

  # Treat exit code 1 as success (e.g. grep with no matches expected)
  parallel-ssh --hosts "host1,host2" --expected-exit 1 -- "grep -q maintenance /etc/motd"

  # Use JSON output for automation
  parallel-ssh --hosts "host1,host2" --output json -- "hostname"`,
	SilenceUsage: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return &SetupError{Message: "command is required after '--'"}
		}
		return nil
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration from all sources
		configManager := config.NewManager()
		loadedCfg, err := configManager.Load()
		if err != nil {
			return &SetupError{Message: fmt.Sprintf("failed to load configuration: %v", err)}
		}
		cfg = loadedCfg

		// Override config with CLI flags if provided
		if err := overrideConfigWithFlags(cmd); err != nil {
			return err
		}

		// Validate that we have at least one host source
		if cfg.Hosts == "" && cfg.HostFile == "" && cfg.Inventory == "" && isStdinTTY() {
			return &SetupError{Message: "must specify hosts via --hosts, --hostfile, --inventory, or stdin"}
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Join all arguments to form the command
		command := strings.Join(args, " ")

		return executeCommand(command, os.Stdout)
	},
}

func init() {
	// Add version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("parallel-ssh %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
			fmt.Printf("Built: %s\n", buildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	// Add all CLI flags
	rootCmd.Flags().StringVar(&hosts, "hosts", "", "Comma-separated list of host identifiers")
	rootCmd.Flags().StringVar(&hostFile, "hostfile", "", "Path to file containing host identifiers (one per line)")
	rootCmd.Flags().StringVar(&inventoryFile, "inventory", "", "Load hosts from Ansible-style inventory file")
	rootCmd.Flags().StringVar(&groupName, "group", "", "Restrict inventory hosts to one group")
	rootCmd.Flags().StringVar(&filterExpr, "filter", "", "Filter hosts using expression (e.g., 'tag:web,prod property:env=production')")
	rootCmd.Flags().StringVar(&groupBy, "group-by", "", "Group execution by property or tag")
	rootCmd.Flags().IntVar(&maxProcs, "max-procs", 1, "Maximum number of concurrently running hosts")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-host execution deadline (0 for no timeout)")
	rootCmd.Flags().IntVar(&expectedExit, "expected-exit", 0, "Exit code classified as success")
	rootCmd.Flags().StringVar(&sshBinary, "ssh-binary", "", "Path to the ssh executable (resolved from PATH when empty)")
	rootCmd.Flags().StringVar(&outputMode, "output", "streamed", "Output format (streamed, buffered, json)")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress non-error output")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show execution plan without spawning processes")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (info, error)")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format (json, text)")
	rootCmd.Flags().BoolVar(&showProgress, "progress", false, "Show progress bar for long-running batches")
	rootCmd.Flags().BoolVar(&showStats, "stats", false, "Show batch statistics after completion")

	// Mark the command as requiring the -- separator
	rootCmd.SetUsageTemplate(rootCmd.UsageTemplate() + `
Note: Command to execute must be specified after '--' separator.
`)
}

func overrideConfigWithFlags(cmd *cobra.Command) error {
	// Override configuration with CLI flags if they were explicitly set
	if cmd.Flags().Changed("hosts") {
		cfg.Hosts = hosts
	}
	if cmd.Flags().Changed("hostfile") {
		cfg.HostFile = hostFile
	}
	if cmd.Flags().Changed("inventory") {
		cfg.Inventory = inventoryFile
	}
	if cmd.Flags().Changed("group") {
		cfg.Group = groupName
	}
	if cmd.Flags().Changed("filter") {
		cfg.Filter = filterExpr
	}
	if cmd.Flags().Changed("group-by") {
		cfg.GroupBy = groupBy
	}
	if cmd.Flags().Changed("max-procs") {
		cfg.MaxProcs = maxProcs
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = timeout
	}
	if cmd.Flags().Changed("expected-exit") {
		cfg.ExpectedExit = expectedExit
	}
	if cmd.Flags().Changed("ssh-binary") {
		cfg.SSHBinary = sshBinary
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = outputMode
	}
	if cmd.Flags().Changed("quiet") {
		cfg.Quiet = quiet
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if cmd.Flags().Changed("progress") {
		cfg.ShowProgress = showProgress
	}
	if cmd.Flags().Changed("stats") {
		cfg.ShowStats = showStats
	}

	// Validate the final configuration
	configManager := config.NewManager()
	if err := configManager.Validate(cfg); err != nil {
		return &SetupError{Message: fmt.Sprintf("configuration validation failed: %v", err)}
	}

	return nil
}

// parseAndFilterTargets parses targets from the configured source and applies filters
func parseAndFilterTargets(logger *logging.Logger) ([]target.Target, error) {
	parser := target.NewParser()
	var targets []target.Target
	var err error
	var source string

	switch {
	case cfg.Inventory != "":
		source = fmt.Sprintf("inventory file: %s", cfg.Inventory)
		inv, invErr := inventory.LoadInventoryFromFile(cfg.Inventory)
		if invErr != nil {
			logger.LogTargetParsingError(source, invErr)
			return nil, &SetupError{Message: fmt.Sprintf("failed to load inventory: %v", invErr)}
		}
		if cfg.Group != "" {
			targets, err = inv.GetTargetsByGroup(cfg.Group)
		} else {
			targets, err = inv.LoadTargets()
		}
		if err != nil {
			logger.LogTargetParsingError(source, err)
			return nil, &SetupError{Message: fmt.Sprintf("failed to parse inventory targets: %v", err)}
		}
	case cfg.Hosts != "":
		source = "CLI hosts parameter"
		targets, err = parser.ParseHosts(cfg.Hosts)
		if err != nil {
			logger.LogTargetParsingError(source, err)
			return nil, &SetupError{Message: fmt.Sprintf("failed to parse hosts: %v", err)}
		}
	case cfg.HostFile != "":
		source = fmt.Sprintf("host file: %s", cfg.HostFile)
		targets, err = parser.ParseHostFile(cfg.HostFile)
		if err != nil {
			logger.LogTargetParsingError(source, err)
			return nil, &SetupError{Message: fmt.Sprintf("failed to parse host file: %v", err)}
		}
	default:
		source = "stdin"
		targets, err = parser.ParseStdin()
		if err != nil {
			logger.LogTargetParsingError(source, err)
			return nil, &SetupError{Message: fmt.Sprintf("failed to parse hosts from stdin: %v", err)}
		}
	}

	// Apply filters if specified
	if cfg.Filter != "" {
		filters, filterErr := filter.ParseFilterExpression(cfg.Filter)
		if filterErr != nil {
			return nil, &SetupError{Message: fmt.Sprintf("failed to parse filter expression: %v", filterErr)}
		}
		originalCount := len(targets)
		targets = filter.FilterTargets(targets, filters...)
		logger.Info("Applied filters", "original_count", originalCount, "filtered_count", len(targets), "filter", cfg.Filter)
	}

	if len(targets) == 0 {
		logger.LogTargetParsingError(source, fmt.Errorf("no valid targets found"))
		return nil, &SetupError{Message: "no valid targets found"}
	}

	// Log successful target parsing
	logger.LogTargetParsing(source, len(targets))

	return targets, nil
}

func executeCommand(command string, writer io.Writer) error {
	// Set up logging
	logger := logging.NewLoggerFromConfig(cfg.LogLevel, cfg.LogFormat, cfg.Quiet)
	logger.LogConfigLoad("CLI flags and configuration files")

	// Parse and filter targets
	targets, err := parseAndFilterTargets(logger)
	if err != nil {
		return err
	}

	// Handle dry-run mode before touching the ssh executable
	if cfg.DryRun {
		return performDryRun(targets, command, writer)
	}

	// Validate the ssh executable; incompatibility is a hard error before
	// any batch can run
	var binary ssh.Binary
	if cfg.SSHBinary != "" {
		binary, err = ssh.NewBinary(cfg.SSHBinary)
	} else {
		binary, err = ssh.Discover()
	}
	if err != nil {
		logger.LogConfigError("ssh executable", err)
		return &SetupError{Message: fmt.Sprintf("ssh executable validation failed: %v", err)}
	}
	logger.LogBinaryValidated(binary.Path, binary.Version)

	// Set up context with graceful SIGINT/SIGTERM cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal, canceling batch", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	// Handle grouping if specified
	if cfg.GroupBy != "" {
		return executeWithGrouping(ctx, binary, targets, command, logger, writer)
	}

	return executeBatch(ctx, binary, targets, command, logger, writer)
}

// executeBatch runs one full batch on the given targets and renders the result
func executeBatch(ctx context.Context, binary ssh.Binary, targets []target.Target, command string, logger *logging.Logger, writer io.Writer) error {
	mode, err := output.ParseMode(cfg.Output)
	if err != nil {
		return &SetupError{Message: err.Error()}
	}
	formatter := output.NewFormatter(mode, writer)

	// Treat the command as a per-target template when it contains template syntax
	var runner ssh.Runner = ssh.NewRunner(binary)
	if template.IsTemplate(command) {
		if err := template.Validate(command); err != nil {
			return &SetupError{Message: fmt.Sprintf("invalid command template: %v", err)}
		}
		runner = template.NewRenderingRunner(runner, targets)
	}

	sup := supervisor.New(runner, logger)
	sup.SetTargets(targets)
	sup.SetMaxProcs(cfg.MaxProcs)
	sup.SetTimeout(cfg.Timeout)

	var progressTracker *progress.Tracker
	if cfg.ShowProgress {
		progressTracker = progress.NewTracker(len(targets), writer)
		sup.SetObserver(func(host string, success bool) {
			progressTracker.Update(success)
		})
	}

	start := time.Now()
	batch, err := sup.Run(ctx, supervisor.Command{Text: command, ExpectedExit: cfg.ExpectedExit})
	if err != nil {
		return &ExecutionError{Message: fmt.Sprintf("batch aborted: %v", err)}
	}

	if progressTracker != nil {
		progressTracker.Finish()
	}

	if err := formatter.WriteBatch(batch); err != nil {
		logger.Error("Failed to format output", "error", err)
		// Formatting errors don't change the batch outcome but should be logged
	}

	if cfg.ShowStats {
		stats.Summarize(batch, time.Since(start)).Write(writer)
	}

	if batch.Failed() {
		return &ExecutionError{
			Message: fmt.Sprintf("execution failed: %d/%d targets failed", len(batch.Failures), batch.Total()),
		}
	}

	return nil
}

// executeWithGrouping runs one batch per target group, sequentially
func executeWithGrouping(ctx context.Context, binary ssh.Binary, targets []target.Target, command string, logger *logging.Logger, writer io.Writer) error {
	groups := filter.GroupTargets(targets, cfg.GroupBy)

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(writer, "Executing on %d groups (grouped by %s):\n", len(groups), cfg.GroupBy)

	var hasFailures bool
	for _, name := range names {
		groupTargets := groups[name]
		fmt.Fprintf(writer, "\n=== Group: %s (%d hosts) ===\n", name, len(groupTargets))

		if err := executeBatch(ctx, binary, groupTargets, command, logger, writer); err != nil {
			if _, ok := err.(*SetupError); ok {
				return err
			}
			hasFailures = true
			logger.Error("Group execution failed", "group", name, "error", err)
		}
	}

	if hasFailures {
		return &ExecutionError{Message: "one or more groups failed"}
	}

	return nil
}

func performDryRun(targets []target.Target, command string, writer io.Writer) error {
	fmt.Fprintln(writer, "parallel-ssh Dry Run - Execution Plan")
	fmt.Fprintln(writer, "=====================================")
	fmt.Fprintln(writer)

	fmt.Fprintln(writer, "Configuration:")
	fmt.Fprintf(writer, "  Command: %s\n", command)
	fmt.Fprintf(writer, "  Total Targets: %d\n", len(targets))
	fmt.Fprintf(writer, "  Max Procs: %d\n", cfg.MaxProcs)
	if cfg.Timeout > 0 {
		fmt.Fprintf(writer, "  Per-Target Timeout: %v\n", cfg.Timeout)
	} else {
		fmt.Fprintf(writer, "  Per-Target Timeout: unlimited\n")
	}
	fmt.Fprintf(writer, "  Expected Exit Code: %d\n", cfg.ExpectedExit)
	fmt.Fprintf(writer, "  Output Format: %s\n", cfg.Output)
	fmt.Fprintln(writer)

	ceiling := cfg.MaxProcs
	if len(targets) < ceiling {
		ceiling = len(targets)
	}
	waves := (len(targets) + cfg.MaxProcs - 1) / cfg.MaxProcs
	fmt.Fprintf(writer, "Execution Plan:\n")
	fmt.Fprintf(writer, "  Concurrent Processes: at most %d\n", ceiling)
	fmt.Fprintf(writer, "  Launch Waves: %d\n", waves)
	fmt.Fprintln(writer)

	fmt.Fprintf(writer, "Target Details:\n")
	for i, t := range targets {
		fmt.Fprintf(writer, "  %d. %s\n", i+1, t.Host)
		fmt.Fprintf(writer, "     → ssh -nqo BatchMode=yes %s '%s'\n", t.Host, command)
	}
	fmt.Fprintln(writer)

	fmt.Fprintf(writer, "Note: This is a dry run. No processes will be spawned.\n")
	fmt.Fprintf(writer, "To execute for real, remove the --dry-run flag.\n")

	return nil
}

func isStdinTTY() bool {
	// Check if stdin is a TTY (terminal)
	stat, err := os.Stdin.Stat()
	if err != nil {
		return true // Assume TTY on error
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// ExecutionError represents an error during command execution (exit code 1)
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// SetupError represents an error during setup/configuration (exit code 2)
type SetupError struct {
	Message string
}

func (e *SetupError) Error() string {
	return e.Message
}

// getExitCode determines the appropriate exit code based on error type
// Returns:
//   - 0: Success (all targets succeeded)
//   - 1: Execution failure (one or more targets failed)
//   - 2: Setup error (invalid arguments, configuration issues, etc.)
func getExitCode(err error) int {
	if err == nil {
		return 0 // Success
	}

	switch err.(type) {
	case *SetupError:
		return 2 // Setup/configuration errors
	case *ExecutionError:
		return 1 // Command execution failures
	default:
		// Unknown errors are treated as setup errors for safety
		return 2
	}
}
