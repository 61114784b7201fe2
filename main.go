package main

import (
	"os"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/config"
	"github.com/spf13/cobra"
)

var log = logger.GetGoI2PLogger()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "go-oscar",
		Short:         "OSCAR protocol client and tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&config.CfgFile, "config", "", "config file (default $HOME/.go-oscar/config.yaml)")
	root.AddCommand(newRelayCmd(), newDecodeCmd(), newChecksumCmd(), newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithFields(logger.Fields{"at": "main", "error": err.Error()}).Error("command_failed")
		os.Exit(1)
	}
}
