package logging

import "testing"

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"DEBUG", "DEBUG"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"info", "INFO"},
		{"", "INFO"},
		{"nonsense", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in).String(); got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestGetLoggerAttachesComponent(t *testing.T) {
	log := GetLogger("retain")
	if log.component != "retain" {
		t.Errorf("expected component=retain, got %s", log.component)
	}
}

func TestWithReturnsNewLoggerPreservingComponent(t *testing.T) {
	log := GetLogger("retain")
	child := log.With("bank_id", "b1")
	if child.component != "retain" {
		t.Errorf("expected component to survive With, got %s", child.component)
	}
	if child == log {
		t.Error("With must return a distinct Logger, not mutate the receiver")
	}
}

func TestInitDoesNotPanicForEachFormat(t *testing.T) {
	Init(Config{Level: "debug", Format: "json", Output: "stderr"})
	Init(Config{Level: "info", Format: "console", Output: "stdout"})
	GetLogger("test").Info("smoke test", "ok", true)
}
