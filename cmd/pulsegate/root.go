package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"pulsegate/pkg/config"
	"pulsegate/pkg/logging"
)

// app carries what every subcommand needs once the config is loaded.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pulsegate",
		Short: "Filtering proxy for the Axiom Pulse feed",
		Long: `pulsegate sits between a trading client and the Axiom Pulse feed.

It drops pulse items whose developer wallet was not funded by a tracked
address (or created by a tracked developer) and passes everything else
through unchanged.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./pulsegate.yaml)")

	root.AddCommand(newServeCmd(a), newInspectCmd(a), newAddressesCmd(a))
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.FromConfig(cfg.Logging)

	for _, addr := range cfg.Filter.InvalidAddresses() {
		a.logger.Warn("Address is not a valid Solana public key", "address", addr)
	}
	return nil
}
