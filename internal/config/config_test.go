package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{
		"JWT_SECRET": "s3cret",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("ListenAddr=%q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.Mode != ModeDev {
		t.Fatalf("Mode=%q, want dev", cfg.Mode)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("LogFormat=%q, want text in dev mode", cfg.LogFormat)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel=%v, want debug in dev mode", cfg.LogLevel)
	}
	if cfg.AuthMode != AuthModeJWT {
		t.Fatalf("AuthMode=%q, want jwt", cfg.AuthMode)
	}
	if cfg.AccessTokenCookie != DefaultAccessTokenCookie {
		t.Fatalf("AccessTokenCookie=%q, want %q", cfg.AccessTokenCookie, DefaultAccessTokenCookie)
	}
	if cfg.SignalingWSPath != DefaultSignalingWSPath {
		t.Fatalf("SignalingWSPath=%q, want %q", cfg.SignalingWSPath, DefaultSignalingWSPath)
	}
	if cfg.MaxSignalingMessageBytes != DefaultMaxSignalingMessageBytes {
		t.Fatalf("MaxSignalingMessageBytes=%d", cfg.MaxSignalingMessageBytes)
	}
	if cfg.ICEConfigError() != nil {
		t.Fatalf("ICEConfigError=%v, want nil", cfg.ICEConfigError())
	}
}

func TestLoad_ProdModeSwitchesLogDefaults(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{
		"CAM_RELAY_MODE": "prod",
		"JWT_SECRET":     "s3cret",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Fatalf("LogFormat=%q, want json in prod mode", cfg.LogFormat)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel=%v, want info in prod mode", cfg.LogLevel)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{
		"CAM_RELAY_LISTEN_ADDR": "127.0.0.1:9000",
		"AUTH_MODE":             "jwt",
		"JWT_SECRET":            "s3cret",
	}), []string{
		"--listen-addr", "0.0.0.0:8443",
		"--auth-mode", "none",
		"--log-level", "warn",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:8443" {
		t.Fatalf("ListenAddr=%q, want flag value", cfg.ListenAddr)
	}
	if cfg.AuthMode != AuthModeNone {
		t.Fatalf("AuthMode=%q, want none", cfg.AuthMode)
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel=%v, want warn", cfg.LogLevel)
	}
}

func TestLoad_JWTModeRequiresSecret(t *testing.T) {
	_, err := load(lookupFrom(map[string]string{}), nil)
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("err=%v, want JWT_SECRET error", err)
	}

	if _, err := load(lookupFrom(map[string]string{"AUTH_MODE": "none"}), nil); err != nil {
		t.Fatalf("load with auth disabled: %v", err)
	}
}

func TestLoad_ValidatesKeepaliveKnobs(t *testing.T) {
	_, err := load(lookupFrom(map[string]string{
		"AUTH_MODE":                  "none",
		"SIGNALING_WS_IDLE_TIMEOUT":  "10s",
		"SIGNALING_WS_PING_INTERVAL": "10s",
	}), nil)
	if err == nil {
		t.Fatalf("expected error for ping interval >= idle timeout")
	}

	cfg, err := load(lookupFrom(map[string]string{
		"AUTH_MODE":                  "none",
		"SIGNALING_WS_IDLE_TIMEOUT":  "90s",
		"SIGNALING_WS_PING_INTERVAL": "30s",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SignalingWSIdleTimeout != 90*time.Second || cfg.SignalingWSPingInterval != 30*time.Second {
		t.Fatalf("keepalive knobs=%v/%v", cfg.SignalingWSIdleTimeout, cfg.SignalingWSPingInterval)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []map[string]string{
		{"AUTH_MODE": "basic"},
		{"AUTH_MODE": "none", "CAM_RELAY_MODE": "staging"},
		{"AUTH_MODE": "none", "CAM_RELAY_LOG_FORMAT": "xml"},
		{"AUTH_MODE": "none", "CAM_RELAY_LOG_LEVEL": "verbose"},
		{"AUTH_MODE": "none", "SIGNALING_WS_PATH": "ws/signal"},
		{"AUTH_MODE": "none", "MAX_SIGNALING_MESSAGE_BYTES": "0"},
		{"AUTH_MODE": "none", "CAM_RELAY_SHUTDOWN_TIMEOUT": "soon"},
		{"AUTH_MODE": "none", "ALLOWED_ORIGINS": "not a url"},
	}
	for _, env := range cases {
		if _, err := load(lookupFrom(env), nil); err == nil {
			t.Fatalf("env %v: expected error", env)
		}
	}
}

func TestLoad_AllowedOriginsNormalized(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{
		"AUTH_MODE":       "none",
		"ALLOWED_ORIGINS": "https://App.Example.com:443, *",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"https://app.example.com", "*"}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != want[0] || cfg.AllowedOrigins[1] != want[1] {
		t.Fatalf("AllowedOrigins=%v, want %v", cfg.AllowedOrigins, want)
	}
}

func TestLoad_ICEServers(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{
		"AUTH_MODE":                  "none",
		"CAM_RELAY_ICE_SERVERS_JSON": `[{"urls":"stun:stun.example.com:3478"}]`,
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0].URLs[0] != "stun:stun.example.com:3478" {
		t.Fatalf("ICEServers=%+v", cfg.ICEServers)
	}

	// Invalid ICE config is deferred to readiness, not a load failure.
	cfg, err = load(lookupFrom(map[string]string{
		"AUTH_MODE":                  "none",
		"CAM_RELAY_ICE_SERVERS_JSON": `[{"urls":"http://example.com"}]`,
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ICEConfigError() == nil {
		t.Fatalf("expected deferred ICE config error")
	}
}

func TestParseICEServersFromConvenienceValues(t *testing.T) {
	servers, err := parseICEServersFromConvenienceValues(
		"stun:stun1.example.com, stun:stun2.example.com",
		"turn:turn.example.com:3478",
		"relay-user", "relay-pass",
	)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("servers=%d, want 2", len(servers))
	}
	if len(servers[0].URLs) != 2 {
		t.Fatalf("stun urls=%v", servers[0].URLs)
	}
	if servers[1].Username != "relay-user" || servers[1].Credential != "relay-pass" {
		t.Fatalf("turn creds=%+v", servers[1])
	}

	if _, err := parseICEServersFromConvenienceValues("", "turn:turn.example.com", "", ""); err == nil {
		t.Fatalf("expected error for turn urls without credentials")
	}
}
