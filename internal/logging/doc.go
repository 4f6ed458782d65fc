// Package logging provides structured logging for the panda-guru CLI.
//
// This package wraps zap logger with convenience functions for the logging
// patterns used throughout the tool. Logging is silent by default so the
// curated command output stays clean; set the PANDA_LOG_LEVEL environment
// variable to "debug", "info", "warn" or "error" to enable it.
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Device connected",
//	    zap.String("usb_serial", "1234567890abcdef"),
//	    zap.Bool("bootstub", false),
//	)
//
// # USB Debugging
//
// Two helpers exist for protocol-level debugging at debug level:
//
//	logging.LogControlTransfer("in", 0xd6, 0, 0, payload)
//	logging.LogRawBytes("signature response", payload)
//
// Both limit hex dumps to the first 256 bytes.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
