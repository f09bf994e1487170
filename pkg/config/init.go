package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfigTemplate is the annotated YAML written by InitConfig. It
// documents every §6 option, leaving the CompID/transport/store fields as
// placeholders the operator must fill in before the engine can connect.
const sampleConfigTemplate = `# FIX session engine configuration file
logging:
  level: INFO
  format: text
  output: stdout

shutdown_timeout: 30s

metrics:
  enabled: false
  port: 9090

session:
  # sender_comp_id and target_comp_id are required: tag 49/56 on outbound,
  # the expected tag 56/49 on inbound.
  sender_comp_id: CHANGEME_SENDER
  target_comp_id: CHANGEME_TARGET

  # addr is required: the TCP endpoint to connect to (initiator) or
  # listen on (acceptor).
  addr: "127.0.0.1:9878"

  # engine_type is required: "initiator" or "acceptor".
  engine_type: initiator

  begin_string: FIX.4.2
  heartbeat_timeout: 30s
  start_time: "00:00:00"

  # store_path is required: a directory for the embedded BadgerDB store,
  # or a "postgres://" / "sqlite://" URL for the SQL backend.
  store_path: "./data/store"

  # log_dir is required: directory for the raw wire log file.
  log_dir: "./data/logs"
`

// InitConfig writes a sample configuration file to the default location,
// returning its path. It refuses to overwrite an existing file unless
// force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path, refusing
// to overwrite an existing file unless force is true.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfigTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
