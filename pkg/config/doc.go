/*
Package config loads taskpulsed's configuration: an optional YAML
file overlaid with command-line flags, flags taking precedence over
the file the same way cmd/warren/main.go layered its global flags over
a cluster's persisted configuration.

# Usage

	cfg := config.Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return err
		}
	}
	cfg.ApplyFlags(cmd.Flags())
*/
package config
