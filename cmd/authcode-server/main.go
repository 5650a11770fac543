// Package main is the entry point for the authcode-server command
package main

import (
	"os"

	"github.com/giantswarm/authcode-server/cmd/authcode-server/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
