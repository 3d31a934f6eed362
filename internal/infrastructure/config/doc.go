// Package config handles loading and validating PoolDose service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (POOLDOSE_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens, the JWT secret) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//   - Config.String masks secrets and is safe to log
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.Host)
package config
