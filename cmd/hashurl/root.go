package main

import (
	"github.com/sifan077/HashURL/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configFile string

	loadConfig := func() (*config.Config, error) {
		if configFile != "" {
			return config.LoadFile(configFile)
		}
		return config.Load()
	}

	root := &cobra.Command{
		Use:   "hashurl",
		Short: "A URL shortener with selectable code algorithms and click rankings",
		Long: `hashurl assigns short codes to URLs using MD5, SHA256, CRC32, ADLER32
or random base62 codes, serves redirects, and ranks links by clicks.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a config file (default: ./config.yaml or ./config/config.yaml)")

	serve := newServeCmd(loadConfig)
	root.AddCommand(serve, newDigestCmd(), newAlgorithmsCmd())

	// Running the bare binary starts the server.
	root.RunE = serve.RunE

	return root
}
