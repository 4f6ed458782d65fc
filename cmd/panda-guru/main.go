// Panda-guru is a firmware utility for comma.ai panda OBD-II adapters.
//
// It talks to the panda directly over USB for operations that touch the
// device's flash memory:
//
//   - Hardware and firmware version reporting
//   - Application firmware flashing via the bootstub
//   - DFU recovery of a bricked device
//   - Offline inspection of firmware images
//
// Prerequisites:
//
//   - A panda connected over USB
//   - Permission to open the USB device (udev rule or root)
//
// See 'panda-guru --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/afflitto/comma-guru/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "panda-guru",
	Short: "Panda Firmware Utility",
	Long: `A standalone utility for comma.ai panda firmware operations.

Talks to the panda over USB for:
  - Hardware and firmware version reporting
  - Application firmware flashing via the bootstub
  - DFU recovery of a bricked device
  - Offline inspection of firmware images

Set PANDA_LOG_LEVEL=debug to see every USB transfer.`,
	Version: version.Version,
	Example: `  # Print hardware and firmware info for the connected panda
  panda-guru version

  # Flash application firmware
  panda-guru flash --bin panda.bin.signed

  # Recover a bricked device over DFU
  panda-guru recover --bin bootstub.panda.bin

  # Inspect a firmware image without a device
  panda-guru bin-info --bin panda.bin.signed`,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
