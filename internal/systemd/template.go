package systemd

import (
	"fmt"
	"strings"
)

// UnitOptions fill the server unit.
type UnitOptions struct {
	Binary     string // default /usr/local/bin/transferguard
	PolicyPath string // default /etc/transferguard/policy.yaml
	Port       int    // gRPC port, default 50051
	HTTPAddr   string // optional JSON API address
	User       string // default transferguard
}

// ServerUnit returns the unit file for transferguard.service. Policy
// store paths should point under /var/lib/transferguard, the only
// writable location the unit grants.
func ServerUnit(opts UnitOptions) string {
	if opts.Binary == "" {
		opts.Binary = "/usr/local/bin/transferguard"
	}
	if opts.PolicyPath == "" {
		opts.PolicyPath = "/etc/transferguard/policy.yaml"
	}
	if opts.Port == 0 {
		opts.Port = 50051
	}
	if opts.User == "" {
		opts.User = "transferguard"
	}

	exec := []string{opts.Binary, "--policy", opts.PolicyPath, "--log-format", "json",
		"serve", "--port", fmt.Sprint(opts.Port)}
	if opts.HTTPAddr != "" {
		exec = append(exec, "--http", opts.HTTPAddr)
	}

	return fmt.Sprintf(`[Unit]
Description=Transfer safety checks (transferguard)
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
User=%s
ExecStart=%s
Restart=on-failure
RestartSec=2
StateDirectory=transferguard
EnvironmentFile=-/etc/transferguard/env
NoNewPrivileges=true
PrivateTmp=true
ProtectSystem=strict
ProtectHome=true
ReadWritePaths=/var/lib/transferguard

[Install]
WantedBy=multi-user.target
`, opts.User, strings.Join(exec, " "))
}
