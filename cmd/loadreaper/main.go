package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/srodi/loadreaper/pkg/config"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	cfg, err := config.FromEnv(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loadreaper: %v\n", err)
		return 1
	}
	root := newRootCmd(&cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

// newRootCmd builds the command tree. Flags start from the values already in
// cfg (defaults overlaid with LOADREAPER_* variables) and override them.
func newRootCmd(cfg *config.Config) *cobra.Command {
	var advisorCmd string

	root := &cobra.Command{
		Use:   "loadreaper",
		Short: "Load-reduce daemon",
		Long: `loadreaper samples the system load average on a fixed period. When the
load is above the threshold it terminates the most CPU-hungry processes,
asks an advisor what they were and writes an HTML report to its working
directory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("advisor-cmd") {
				cfg.AdvisorCommand = strings.Fields(advisorCmd)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "load average above which processes are terminated")
	flags.IntVar(&cfg.Cap, "cap", cfg.Cap, "maximum processes terminated per cycle")
	flags.DurationVar(&cfg.Period, "period", cfg.Period, "time between cycles")
	flags.IntVar(&cfg.LoadWindow, "load-window", cfg.LoadWindow, "load average window compared to the threshold (1, 5 or 15)")
	flags.StringVar(&cfg.WorkDir, "workdir", cfg.WorkDir, "working directory for the log, reports and lock, relative to the current directory")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file name inside the working directory")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "minimum log level (debug, info, warn, error)")
	flags.StringVar(&cfg.ReportPrefix, "report-prefix", cfg.ReportPrefix, "report file name prefix")
	flags.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write Prometheus metrics in textfile format after every cycle")
	flags.StringVar(&cfg.SyslogTag, "syslog-tag", cfg.SyslogTag, "system log identity of the detached daemon")
	flags.StringVar(&cfg.Census, "census", cfg.Census, "process census source (ps or proc)")
	flags.StringVar(&cfg.Signal, "signal", cfg.Signal, "signal sent to selected processes (TERM, INT or KILL)")
	flags.StringVar(&cfg.Advisor, "advisor", cfg.Advisor, "commentary source (exec, http or none)")
	flags.StringVar(&advisorCmd, "advisor-cmd", strings.Join(cfg.AdvisorCommand, " "), "advisor command; process names are appended as arguments")
	flags.StringVar(&cfg.AdvisorURL, "advisor-url", cfg.AdvisorURL, "chat completions endpoint for the http advisor")
	flags.StringVar(&cfg.AdvisorModel, "advisor-model", cfg.AdvisorModel, "model requested from the http advisor")
	flags.DurationVar(&cfg.AdvisorTimeout, "advisor-timeout", cfg.AdvisorTimeout, "deadline for one advisor call")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Detach and run the load-reduce loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), *cfg)
		},
	}
	runCmd.Flags().BoolVar(&cfg.Foreground, "foreground", cfg.Foreground, "stay attached to the terminal")
	runCmd.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "stop after the first cycle that ends OK")

	cycleCmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run a single cycle in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *cfg
			c.Foreground = true
			c.Once = true
			return runDaemon(cmd.Context(), c)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving current directory: %w", err)
			}
			n := cfg.Normalize(cwd)
			if err := n.Validate(); err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(n.Redacted()); err != nil {
				return fmt.Errorf("encoding configuration: %w", err)
			}
			return enc.Close()
		},
	}

	root.AddCommand(runCmd, cycleCmd, configCmd)
	return root
}
