package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pior/replyroute"
	"github.com/pior/replyroute/bouncer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "replyroute",
		Short: "IRC bouncer that routes replies to the client that asked",
		Long: `replyroute keeps one connection per IRC network and shares it between
any number of clients. Replies to commands such as WHO, WHOIS or LIST are
delivered only to the client that sent the command.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(), newCheckCmd(), newRulesCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bouncer",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			config, err := bouncer.LoadConfig(configPath)
			if err != nil {
				return err
			}

			b, err := bouncer.New(config, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := b.Run(ctx); err != nil {
				logger.Error("bouncer stopped", zap.Error(err))
				return err
			}
			logger.Info("bouncer stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "replyroute.yaml", "Configuration file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := bouncer.LoadConfig(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "listen: %s\n", config.Listen)
			for _, n := range config.Networks {
				fmt.Fprintf(out, "network %s: nick %s, servers %s\n", n.Name, n.Nick, strings.Join(n.Servers, " "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "replyroute.yaml", "Configuration file")
	return cmd
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the routable commands and their expected replies",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printRules(cmd.OutOrStdout(), replyroute.DefaultRules())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "replyroute", version)
		},
	}
}

func printRules(w io.Writer, rules replyroute.RuleTable) {
	for _, verb := range rules.Verbs() {
		markers := make([]string, 0, len(rules[verb].Replies))
		for _, reply := range rules[verb].Replies {
			if reply.Terminal {
				markers = append(markers, reply.Marker+" (last)")
			} else {
				markers = append(markers, reply.Marker)
			}
		}
		fmt.Fprintf(w, "%-9s %s\n", verb, strings.Join(markers, ", "))
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
