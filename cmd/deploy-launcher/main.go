package main

import (
	"os"

	"github.com/kubestellar/deploy-launcher/pkg/cmd"
	"github.com/kubestellar/deploy-launcher/pkg/launcher"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(launcher.ExitCode(err))
	}
}
