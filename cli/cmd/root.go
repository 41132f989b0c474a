package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibridge-systems/ibridge/common/config"
	"github.com/ibridge-systems/ibridge/common/logging"
	"github.com/ibridge-systems/ibridge/common/messaging"
	"github.com/ibridge-systems/ibridge/common/transport"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ibridgemsg",
	Short: "ibridge message tool",
	Long: `ibridgemsg builds command and event envelopes for the ibridge bridge server.

Encode envelopes to their wire form, inspect them as JSON or YAML, publish them
through the configured transport, and check that the transport is reachable.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.ibridge/config.yaml)")
	rootCmd.PersistentFlags().String("transport", "", "transport type override: nats, redis, local")
	rootCmd.PersistentFlags().String("channel", "", "channel override")
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Second, "timeout for transport operations")
}

func initConfig() {
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadCLI()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}

	logger = logging.NewWithWriter(os.Stderr, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
}

// resolveConfig applies the persistent flag overrides to the loaded configuration.
func resolveConfig(cmd *cobra.Command) *config.Config {
	resolved := *cfg
	if t, _ := cmd.Flags().GetString("transport"); t != "" {
		resolved.Transport.Type = t
	}
	if ch, _ := cmd.Flags().GetString("channel"); ch != "" {
		resolved.Transport.Channel = ch
	}
	return &resolved
}

// session is an open transport plus the configuration and deadline it was opened with.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	client messaging.Client
	cfg    *config.Config
}

func (s *session) Close() {
	_ = s.client.Close()
	s.cancel()
}

// openTransport connects to the transport selected by the flags and configuration.
// The session context expires after --timeout.
func openTransport(cmd *cobra.Command) (*session, error) {
	resolved := resolveConfig(cmd)
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	client, err := transport.Open(ctx, resolved, logger)
	if err != nil {
		cancel()
		return nil, err
	}
	return &session{ctx: ctx, cancel: cancel, client: client, cfg: resolved}, nil
}
