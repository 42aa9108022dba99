package main

import (
	"os"

	"cosmossdk.io/log"

	"github.com/openalpha/etf-service/cmd/etfd/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		log.NewLogger(os.Stderr).Error("failure when running service", "err", err)
		os.Exit(1)
	}
}
