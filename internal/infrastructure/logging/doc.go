// Package logging provides structured logging for the pilight gateway.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text when developing, with service and version attached to
// every record.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("catalog loaded", "protocols", reg.Len())
//
// *Logger satisfies the small Logger interfaces declared by the protocol,
// gateway and catalogwatch packages.
//
// Never log payload secrets, API signing keys or broker passwords.
package logging
