// Package logging provides structured logging for the salusconnect tools.
//
// This package wraps a zap logger with convenience functions. Logging is
// silent by default so CLI output stays clean; set SALUS_LOG_LEVEL or pass
// --log-level to turn it on.
//
// # Log Levels
//
//   - Debug: every cloud API request and response (URLs with secrets redacted)
//   - Info: bridge lifecycle, poll cycles, websocket subscribers
//   - Warn: non-2xx API responses, dropped subscribers
//   - Error: transport failures, startup failures
//
// # Usage
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
//	logging.Info("Bridge listening", zap.String("addr", ":8710"))
//
// Bearer tokens must never be logged verbatim; use RedactToken.
package logging
