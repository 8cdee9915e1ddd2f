// Package config handles loading and validating Gray Logic Cloudlink configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - API keys and broker passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Retry budgets and per-domain delays are ordinary configuration values.
// The defaults match the delays the gateway firmware has always used
// (3s between API attempts, 6s between MQTT attempts).
//
// Usage:
//
//	cfg, err := config.Load("configs/cloudlink.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Cloud.BaseURL)
package config
