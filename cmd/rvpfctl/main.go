// Command rvpfctl is a diagnostic client/simulator for the related-values
// protocol core: it reads and writes individual points against a live
// DNP3 outstation or CIP controller, lists the associations a config file
// describes, and can stand up a throwaway DNP3 outstation simulator other
// masters can poll during integration testing.
package main

import (
	"fmt"
	"os"

	"github.com/rob-gra/rvpf-protocol-core/cmd/rvpfctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
