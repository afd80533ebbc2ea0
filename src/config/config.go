package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ConfigPathEnvVar  = "SCREEN_SNIP"
	DefaultModeEnvVar = "DEFAULT_MODE"
	DefaultModeRect   = "rectangle"
	DefaultModeLasso  = "lasso"

	DefaultHotkey        = "Ctrl+Shift+S"
	DefaultHostWindow    = "main"
	DefaultOverlayWindow = "snip-overlay"
	DefaultOverlayURL    = "overlay.html"
	DefaultHTTPAddr      = "127.0.0.1:49560"
)

type LoadOptions struct {
	EnvPathOverride     string
	DefaultModeOverride string
	HTTPAddrOverride    string
}

type Config struct {
	EnvPath           string
	EnableFileLogging bool
	LogDir            string
	Hotkey            string
	DefaultMode       string
	HostWindow        string
	OverlayWindow     string
	OverlayURL        string
	HTTPAddr          string
	CopyToClipboard   bool
	PNGCompression    string
	EnableTray        bool
	EnableChrome      bool
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Configuration sources in priority order:
	// 1) explicit --env path
	// 2) .env in the executable directory
	// 3) file named by SCREEN_SNIP
	envPath := resolveEnvPath(opts)
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		EnvPath:           envPath,
		EnableFileLogging: envBool("ENABLE_FILE_LOGGING", false),
		LogDir:            os.Getenv("LOG_DIR"),
		Hotkey:            getEnvWithDefault("HOTKEY", DefaultHotkey),
		DefaultMode:       resolveDefaultModeValue(opts),
		HostWindow:        getEnvWithDefault("HOST_WINDOW", DefaultHostWindow),
		OverlayWindow:     getEnvWithDefault("OVERLAY_WINDOW", DefaultOverlayWindow),
		OverlayURL:        getEnvWithDefault("OVERLAY_URL", DefaultOverlayURL),
		HTTPAddr:          getEnvWithDefault("HTTP_ADDR", DefaultHTTPAddr),
		CopyToClipboard:   envBool("COPY_TO_CLIPBOARD", false),
		PNGCompression:    getEnvWithDefault("PNG_COMPRESSION", "default"),
		EnableTray:        envBool("ENABLE_TRAY", true),
		EnableChrome:      envBool("ENABLE_CHROME", true),
	}
	if override := strings.TrimSpace(opts.HTTPAddrOverride); override != "" {
		cfg.HTTPAddr = override
	}

	return cfg, nil
}

func resolveEnvPath(opts LoadOptions) string {
	if p := strings.TrimSpace(opts.EnvPathOverride); p != "" {
		return p
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(ConfigPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func envBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func resolveDefaultMode(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "rect", DefaultModeRect:
		return DefaultModeRect
	case DefaultModeLasso:
		return DefaultModeLasso
	default:
		return DefaultModeRect
	}
}

func resolveDefaultModeValue(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.DefaultModeOverride); override != "" {
		return resolveDefaultMode(override)
	}
	return resolveDefaultMode(os.Getenv(DefaultModeEnvVar))
}
