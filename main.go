// Package main is the entry point for the modwatch CLI.
package main

import (
	"os"

	"github.com/socinabox/modwatch/cmd"
	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/internal/iocache"
)

func main() {
	cmd.SetCacheManager(iocache.Manager)
	err := cmd.Execute()
	iocache.CloseStores()
	if err != nil {
		contract.Logger().Error().Err(err).Msg("modwatch failed")
		os.Exit(1)
	}
}
