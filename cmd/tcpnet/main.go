package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/tcpnet/tcp"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD166"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
)

// app carries what every command needs once the root pre-run has loaded
// the configuration.
type app struct {
	envFile  string
	logLevel string
	dev      bool

	cfg    config
	logger *zap.Logger
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "tcpnet",
		Short: "TCP client, server and block list tool",
		Long: `tcpnet runs TCP servers and clients on the tcpnet library.

Configuration comes from a .env file, TCPNET_* environment variables
and flags, in increasing order of precedence.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&a.dev, "dev", false, "Human-readable development logging")

	rootCmd.AddCommand(
		listenCmd(a),
		connectCmd(a),
		checkCmd(a),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errorMsg("%s", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, warnings, err := loadConfig(a.envFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("dev") {
		cfg.Development = a.dev
	}

	logger, err := newLogger(cfg.LogLevel, cfg.Development)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	for _, w := range warnings {
		logger.Debug(w)
	}

	a.cfg = cfg
	a.logger = logger
	tcp.SetLogger(logger)
	return nil
}

func success(format string, args ...any) {
	fmt.Println(successStyle.Render("✓") + " " + fmt.Sprintf(format, args...))
}

func info(format string, args ...any) {
	fmt.Println("  " + infoStyle.Render(fmt.Sprintf(format, args...)))
}

func warn(format string, args ...any) {
	fmt.Println(warnStyle.Render("⚠") + " " + fmt.Sprintf(format, args...))
}

func errorMsg(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}
