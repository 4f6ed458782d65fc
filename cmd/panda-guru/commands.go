package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/afflitto/comma-guru/internal/discovery"
	"github.com/afflitto/comma-guru/internal/firmware"
	"github.com/afflitto/comma-guru/internal/fwscan"
	"github.com/afflitto/comma-guru/internal/logging"
	"github.com/afflitto/comma-guru/internal/panda"
	"github.com/afflitto/comma-guru/internal/ui"
)

// Command flags
var (
	deviceSerial string
	binPath      string
	forceFlash   bool
	dfuTimeout   string
	usbVerbose   bool // Show the USB transfer log
)

// reconnectTimeout bounds how long we wait for the panda to re-enumerate
// after a reset.
const reconnectTimeout = 5 * time.Second

func init() {
	// Common flags for all commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&deviceSerial, "serial", "", "USB serial of the panda to use (default: first found)")
	rootCmd.PersistentFlags().BoolVarP(&usbVerbose, "verbose", "v", false, "Show the USB transfer log")

	// Add subcommands
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deviceVersionCmd)
	rootCmd.AddCommand(flashCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(binInfoCmd)
}

// connectPanda opens the panda selected by --serial with logging configured
// from the environment
func connectPanda() (*panda.Panda, error) {
	// Initialize logging from environment variable (silent by default)
	// Set PANDA_LOG_LEVEL=debug to see every USB transfer
	if err := logging.InitializeFromEnv(); err != nil {
		// Ignore error, GetLogger will create fallback logger
		_ = err
	}

	return panda.Connect(deviceSerial, logging.GetLogger())
}

// listCmd implements the 'list' command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pandas connected over USB",
	Long: `List pandas connected over USB.

Shows every device in panda, bootstub or DFU mode. Only descriptors are
read, so listing never disturbs a device mid-operation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		devices, err := discovery.Scan()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("No pandas found")
			return nil
		}
		for _, device := range devices {
			line := device.String()
			if device.Recoverable() {
				line += "  [run 'panda-guru recover']"
			}
			fmt.Println(line)
		}
		return nil
	},
}

// deviceVersionCmd implements the 'version' command
var deviceVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print hardware and firmware info for the connected panda",
	Long: `Print hardware and firmware info for the connected panda.

Reads the serial block, MCU family, firmware version string and build
signature over USB control transfers.`,
	Example: `  # First panda found
  panda-guru version

  # A specific device
  panda-guru version --serial 250042000851363031343032`,
	RunE: runDeviceVersion,
}

func runDeviceVersion(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	p, err := connectPanda()
	if err != nil {
		return err
	}
	defer p.Close()

	fwVersion, err := p.Version()
	if err != nil {
		return err
	}
	signature, err := p.Signature()
	if err != nil {
		return err
	}
	serialA, serialB, err := p.Serial()
	if err != nil {
		return err
	}

	fmt.Println("Hardware info:")
	fmt.Printf("\tserial_number=%s:%s\n", serialA, serialB)
	fmt.Printf("\tmcu_type=%s\n", p.Mcu())
	fmt.Println("Firmware info:")
	fmt.Printf("\tversion=%s\n", fwVersion)
	fmt.Println("\tsignature:")
	fmt.Println(signature.Hex())
	return nil
}

// flashCmd implements the 'flash' command
var flashCmd = &cobra.Command{
	Use:   "flash",
	Short: "Flash application firmware to the panda",
	Long: `Flash an application firmware image to the panda.

This command will:
  1. Compare build signatures and skip if the device already runs the image
  2. Reset the device into the bootstub
  3. Erase the application sectors and write the image over USB bulk
  4. Reset back into the new firmware and verify the version

The bootstub is never touched; an interrupted flash is recoverable by
running the command again.`,
	Example: `  # Flash firmware
  panda-guru flash --bin panda.bin.signed

  # Flash even if the device already runs this image
  panda-guru flash --bin panda.bin.signed --force`,
	RunE: runFlash,
}

func init() {
	flashCmd.Flags().StringVar(&binPath, "bin", "", "Path to the firmware image (required)")
	flashCmd.Flags().BoolVar(&forceFlash, "force", false, "Flash even if the device is already up to date")
	_ = flashCmd.MarkFlagRequired("bin")
}

func runFlash(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	code, err := firmware.ReadImage(binPath)
	if err != nil {
		return err
	}

	p, err := connectPanda()
	if err != nil {
		ui.PrintFailure("Flash Firmware failed", err, []string{
			"Check the panda is plugged in",
			"Verify no other process has the device open",
		})
		return err
	}
	defer func() { _ = p.Close() }()

	currentVersion, err := p.Version()
	if err != nil {
		return err
	}
	fmt.Printf("Current firmware version: %s\n", currentVersion)

	if !forceFlash {
		upToDate, err := p.UpToDate(binPath)
		if err == nil && upToDate {
			fmt.Println("Firmware is already up to date, use --force to flash anyway")
			return nil
		}
		// Signature comparison failures are not fatal, flash proceeds
	}

	if !ui.FlashWriteConfirmation() {
		return nil // User cancelled
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Flash Firmware",
		Command: "panda-guru flash",
		Params: map[string]string{
			"Serial":   p.USBSerial(),
			"Board":    p.Board().Name,
			"Firmware": binPath,
		},
		TotalSteps: 4,
		StepNames: []string{
			"Entering bootstub",
			"Flashing application",
			"Reconnecting",
			"Verifying firmware",
		},
		Verbose: usbVerbose,
	})

	_, err = runner.RunWithResult(context.Background(), func(onStep ui.StepCallback) (map[string]string, error) {
		usbSerial := p.USBSerial()

		// Step 1: get the device into the bootstub
		onStep(1, "", ui.StepRunning, "")
		if !p.Bootstub() {
			p.ResetToBootstub()
			_ = p.Close()

			ctx, cancel := context.WithTimeout(context.Background(), reconnectTimeout)
			defer cancel()
			p, err = panda.Reconnect(ctx, usbSerial, logging.GetLogger())
			if err != nil {
				onStep(1, "", ui.StepFailed, "")
				return nil, err
			}
			runner.AppendDeviceLog("enter bootstub (0xd1), reconnected as " + p.USBSerial())
		}
		if !p.Bootstub() {
			onStep(1, "", ui.StepFailed, "")
			return nil, panda.ErrNotBootstub
		}
		bootstubVersion, err := p.Version()
		if err != nil {
			onStep(1, "", ui.StepFailed, "")
			return nil, err
		}
		onStep(1, "", ui.StepComplete, bootstubVersion)

		// Step 2: erase and write the application
		onStep(2, "", ui.StepRunning, "")
		err = p.FlashApplication(code, func(written, total int) {
			onStep(2, "", ui.StepRunning, fmt.Sprintf("%d/%d bytes", written, total))
		})
		if err != nil {
			onStep(2, "", ui.StepFailed, "")
			return nil, err
		}
		onStep(2, "", ui.StepComplete, fmt.Sprintf("%d bytes", len(code)))
		runner.AppendDeviceLog(fmt.Sprintf("flashed %d bytes over bulk EP2", len(code)))

		// Step 3: device resets into the new firmware
		onStep(3, "", ui.StepRunning, "")
		_ = p.Close()
		ctx, cancel := context.WithTimeout(context.Background(), reconnectTimeout)
		defer cancel()
		p, err = panda.Reconnect(ctx, usbSerial, logging.GetLogger())
		if err != nil {
			onStep(3, "", ui.StepFailed, "")
			return nil, err
		}
		onStep(3, "", ui.StepComplete, "")

		// Step 4: read back the version
		onStep(4, "", ui.StepRunning, "")
		newVersion, err := p.Version()
		if err != nil {
			onStep(4, "", ui.StepFailed, "")
			return nil, err
		}
		onStep(4, "", ui.StepComplete, "")

		return map[string]string{
			"Previous": currentVersion,
			"New":      newVersion,
		}, nil
	})
	if err != nil {
		return fmt.Errorf("flash failed: %w", err)
	}

	return nil
}

// recoverCmd implements the 'recover' command
var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Recover a panda by reflashing the bootstub over DFU",
	Long: `Recover a panda by reflashing the bootstub over ST DFU.

The device is dropped into the STM32 system bootloader, matched by the
DFU serial derived from its chip UID, and the bootstub image is erased
and reprogrammed over DFU. Run 'panda-guru flash' afterwards to flash
application firmware.`,
	Example: `  # Recover with the default 60 second DFU wait
  panda-guru recover --bin bootstub.panda.bin

  # Allow more time for enumeration
  panda-guru recover --bin bootstub.panda.bin --timeout 2m`,
	RunE: runRecover,
}

func init() {
	recoverCmd.Flags().StringVar(&binPath, "bin", "", "Path to the bootstub image (required)")
	recoverCmd.Flags().StringVar(&dfuTimeout, "timeout", "60s", "How long to wait for the DFU device (e.g., 30s, 2m)")
	_ = recoverCmd.MarkFlagRequired("bin")
}

func runRecover(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	timeout, err := time.ParseDuration(dfuTimeout)
	if err != nil {
		return fmt.Errorf("invalid timeout value: %w", err)
	}

	code, err := firmware.ReadImage(binPath)
	if err != nil {
		return err
	}

	p, err := connectPanda()
	if err != nil {
		ui.PrintFailure("DFU Recovery failed", err, []string{
			"Check the panda is plugged in",
			"If the device is already in DFU mode it will not enumerate as a panda",
		})
		return err
	}
	defer p.Close()

	dfuSerial, err := p.DFUSerial()
	if err != nil {
		return fmt.Errorf("could not derive DFU serial: %w", err)
	}
	mcu := p.Mcu()

	if !ui.RecoveryConfirmation() {
		return nil // User cancelled
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "DFU Recovery",
		Command: "panda-guru recover",
		Params: map[string]string{
			"Serial":     p.USBSerial(),
			"DFU Serial": dfuSerial,
			"Bootstub":   binPath,
		},
		TotalSteps: 4,
		StepNames: []string{
			"Entering bootloader",
			"Waiting for DFU",
			"Programming bootstub",
			"Resetting device",
		},
		Verbose: usbVerbose,
		Troubleshooting: []string{
			"Check the USB cable and try a different port",
			"Some hubs block DFU enumeration, connect the panda directly",
			"Run with --verbose for the full transfer log",
		},
	})

	err = runner.Run(context.Background(), func(onStep ui.StepCallback) error {
		// Step 1: bootstub first, then bootloader
		onStep(1, "", ui.StepRunning, "")
		p.ResetToBootstub()
		p.ResetToBootloader()
		_ = p.Close()
		runner.AppendDeviceLog("enter bootstub (0xd1 wValue=1), enter bootloader (0xd1 wValue=0)")
		onStep(1, "", ui.StepComplete, "")

		// Step 2: wait for the ST bootloader to enumerate
		onStep(2, "", ui.StepRunning, "")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := panda.WaitForDFU(ctx, dfuSerial); err != nil {
			onStep(2, "", ui.StepFailed, "")
			return err
		}
		onStep(2, "", ui.StepComplete, "")

		// Step 3: erase and program over DFU
		onStep(3, "", ui.StepRunning, "")
		dfu, err := panda.OpenDFU(dfuSerial, mcu, logging.GetLogger())
		if err != nil {
			onStep(3, "", ui.StepFailed, "")
			return err
		}
		defer dfu.Close()
		if err := dfu.ProgramBootstub(code); err != nil {
			onStep(3, "", ui.StepFailed, "")
			return err
		}
		onStep(3, "", ui.StepComplete, fmt.Sprintf("%d bytes", len(code)))
		runner.AppendDeviceLog(fmt.Sprintf("programmed %d bytes over DFU", len(code)))

		// Step 4: leave DFU mode
		onStep(4, "", ui.StepRunning, "")
		dfu.Reset()
		onStep(4, "", ui.StepComplete, "")
		return nil
	})
	if err != nil {
		return fmt.Errorf("recovery failed: %w", err)
	}

	fmt.Println("Run the flash command to flash panda firmware")
	return nil
}

// resetCmd implements the 'reset' command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the panda",
	Long:  `Reset the panda into its application firmware.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		p, err := connectPanda()
		if err != nil {
			return err
		}
		defer p.Close()

		fmt.Println("Resetting panda...")
		p.Reset()
		return nil
	},
}

// binInfoCmd implements the 'bin-info' command
var binInfoCmd = &cobra.Command{
	Use:   "bin-info",
	Short: "Print version info of a firmware image",
	Long: `Print version info of a firmware image without a device.

Scans the image for embedded version tags and extracts the build
signature appended to the end of the image.`,
	Example: `  panda-guru bin-info --bin panda.bin.signed`,
	RunE: runBinInfo,
}

func init() {
	binInfoCmd.Flags().StringVar(&binPath, "bin", "", "Path to the firmware image (required)")
	_ = binInfoCmd.MarkFlagRequired("bin")
}

func runBinInfo(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	image, err := firmware.ReadImage(binPath)
	if err != nil {
		return err
	}

	fmt.Println("Possible version matches:")
	for _, match := range fwscan.Scan(image) {
		fmt.Println(match)
	}

	signature, err := firmware.SignatureFromFirmware(binPath)
	if err != nil {
		var invalid *firmware.InvalidFirmwareError
		if errors.As(err, &invalid) {
			return invalid
		}
		return err
	}
	fmt.Println("Signature:")
	fmt.Println(signature.Hex())
	return nil
}
