package systemd

import (
	"strings"
	"testing"
)

func TestServerUnitDefaults(t *testing.T) {
	unit := ServerUnit(UnitOptions{})

	// Must be a valid systemd unit with required sections.
	for _, section := range []string{"[Unit]", "[Service]", "[Install]"} {
		if !strings.Contains(unit, section) {
			t.Errorf("unit missing section %s", section)
		}
	}

	want := "ExecStart=/usr/local/bin/transferguard --policy /etc/transferguard/policy.yaml --log-format json serve --port 50051\n"
	if !strings.Contains(unit, want) {
		t.Errorf("unexpected ExecStart:\n%s", unit)
	}
	if !strings.Contains(unit, "User=transferguard") {
		t.Error("unit missing default user")
	}

	// Must have security hardening directives.
	for _, directive := range []string{"NoNewPrivileges=true", "PrivateTmp=true", "ProtectSystem=strict", "ReadWritePaths=/var/lib/transferguard"} {
		if !strings.Contains(unit, directive) {
			t.Errorf("unit missing security directive %s", directive)
		}
	}
}

func TestServerUnitOptions(t *testing.T) {
	unit := ServerUnit(UnitOptions{
		Binary:     "/opt/tg/bin/transferguard",
		PolicyPath: "/srv/policy.yaml",
		Port:       6000,
		HTTPAddr:   "127.0.0.1:8080",
		User:       "wallet",
	})

	want := "ExecStart=/opt/tg/bin/transferguard --policy /srv/policy.yaml --log-format json serve --port 6000 --http 127.0.0.1:8080\n"
	if !strings.Contains(unit, want) {
		t.Errorf("unexpected ExecStart:\n%s", unit)
	}
	if !strings.Contains(unit, "User=wallet") {
		t.Error("unit missing configured user")
	}
}
