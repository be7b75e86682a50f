// Package config handles loading and validating the pilight gateway
// configuration.
//
// This package manages:
//   - Loading configuration from a YAML file (path from PILIGHT_CONFIG)
//   - Overriding with PILIGHT_* environment variables
//   - Validation of every section, reporting all problems at once
//
// Secrets (MQTT password, InfluxDB token, API signing secret) should be set
// through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Catalog.Path)
package config
