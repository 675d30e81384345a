// Package main provides the entrypoint for the headwind-controller
// binary. Grounded on the teacher's cmd/fleetcontroller/main.go,
// adapted from wrangler-cli's command.Main(App()) to the cobra
// command root.go builds directly.
package main

import (
	"fmt"
	"os"

	"github.com/headwind-sh/headwind/internal/cmd/controller"
)

func main() {
	if err := controller.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
