// Package config resolves cam2web's settings the way the teacher's own
// config package does: built-in defaults, optionally overridden by a TOML
// file, finally overridden by CLI flags (defaults < file < flags).
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"cam2web/internal/webserver"
)

// Resolution is one entry of the -size:<0-7> preset table.
type Resolution struct {
	Width  int
	Height int
}

// sizePresets is the bounds-checked replacement for the original's
// value[0]-'0' array index (SPEC_FULL.md §3.4): every lookup goes through
// Preset, which range-checks before indexing.
var sizePresets = [8]Resolution{
	{320, 240},
	{424, 240},
	{640, 480},
	{800, 600},
	{1024, 768},
	{1280, 720},
	{1600, 900},
	{1920, 1080},
}

// Preset resolves a -size index to its Resolution, rejecting anything
// outside [0,7] instead of reading past the table.
func Preset(size int) (Resolution, error) {
	if size < 0 || size >= len(sizePresets) {
		return Resolution{}, fmt.Errorf("size preset %d out of range [0,%d]", size, len(sizePresets)-1)
	}
	return sizePresets[size], nil
}

const (
	AppName    = "cam2web"
	AppVersion = "1.0.0"
)

// Config is the fully resolved set of tunables cam2web runs with, the
// union of spec.md §6's CLI surface and the TOML file it may be layered
// on top of.
type Config struct {
	Size        int    `toml:"size"`
	FPS         int    `toml:"fps"`
	JPEGQuality int    `toml:"jpeg"`
	Port        int    `toml:"port"`
	Realm       string `toml:"realm"`
	HtpassPath  string `toml:"htpass"`
	Viewer      string `toml:"viewer"`
	Configurator string `toml:"config"`
	FcfgPath    string `toml:"fcfg"`
	WebRoot     string `toml:"web"`
	Title       string `toml:"title"`
	AdminAddr   string `toml:"admin_addr"`
	LogLevel    string `toml:"log_level"`
}

// Defaults returns the built-in configuration, the bottom of the
// defaults-then-file-then-flags stack.
func Defaults() Config {
	return Config{
		Size:         5, // 1280x720
		FPS:          15,
		JPEGQuality:  85,
		Port:         8000,
		Realm:        "cam2web",
		HtpassPath:   "",
		Viewer:       "any",
		Configurator: "user",
		FcfgPath:     "cam2web.cfg",
		WebRoot:      "",
		Title:        "cam2web",
		AdminAddr:    "",
		LogLevel:     "info",
	}
}

// LoadTOML overlays path (if it exists) onto cfg. A missing file is not an
// error, matching the teacher's LoadConfig treating an absent config.toml
// as "use defaults".
func LoadTOML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// SaveTOML persists cfg to path as TOML, in the form LoadTOML reads back.
func SaveTOML(cfg Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

// ParseFlags applies spec.md §6's CLI surface onto cfg, overriding
// whatever the TOML layer set. It uses the standard flag package with its
// colon-free name and reads the `:value` suffix spec.md's Linux syntax
// uses by splitting "-size:5" into flag name "size" and value "5" before
// flag.Parse ever sees it, since `flag` itself only understands
// "-name value" / "-name=value".
func ParseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)

	size := fs.String("size", strconv.Itoa(cfg.Size), "video size preset (0-7)")
	fps := fs.String("fps", strconv.Itoa(cfg.FPS), "frame rate (1-30)")
	jpeg := fs.String("jpeg", strconv.Itoa(cfg.JPEGQuality), "JPEG quality (1-100)")
	port := fs.String("port", strconv.Itoa(cfg.Port), "bind port (1-65535)")
	realm := fs.String("realm", cfg.Realm, "auth domain")
	htpass := fs.String("htpass", cfg.HtpassPath, "htdigest user file")
	viewer := fs.String("viewer", cfg.Viewer, "viewer group: any|user|power|admin")
	configurator := fs.String("config", cfg.Configurator, "configurator group: any|user|power|admin")
	fcfg := fs.String("fcfg", cfg.FcfgPath, "camera config persistence file")
	web := fs.String("web", cfg.WebRoot, "document root (embedded if unset)")
	title := fs.String("title", cfg.Title, "camera title overlay")

	if err := fs.Parse(rewriteColonFlags(args)); err != nil {
		return err
	}

	n, err := strconv.Atoi(*size)
	if err != nil {
		return fmt.Errorf("-size: %w", err)
	}
	if _, err := Preset(n); err != nil {
		return fmt.Errorf("-size: %w", err)
	}
	cfg.Size = n

	if cfg.FPS, err = parseIntRange("-fps", *fps, 1, 30); err != nil {
		return err
	}
	if cfg.JPEGQuality, err = parseIntRange("-jpeg", *jpeg, 1, 100); err != nil {
		return err
	}
	if cfg.Port, err = parseIntRange("-port", *port, 1, 65535); err != nil {
		return err
	}
	if _, err := parseGroup(*viewer); err != nil {
		return fmt.Errorf("-viewer: %w", err)
	}
	if _, err := parseGroup(*configurator); err != nil {
		return fmt.Errorf("-config: %w", err)
	}

	cfg.Realm = *realm
	cfg.HtpassPath = *htpass
	cfg.Viewer = *viewer
	cfg.Configurator = *configurator
	cfg.FcfgPath = *fcfg
	cfg.WebRoot = *web
	cfg.Title = *title

	return nil
}

func parseIntRange(flagName, value string, min, max int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", flagName, err)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s: %d out of range [%d,%d]", flagName, n, min, max)
	}
	return n, nil
}

// rewriteColonFlags turns spec.md's Linux "-name:value" argument syntax
// into the "-name=value" form the standard flag package parses: every
// argument that starts with '-' and contains a ':' but no '=' has its first
// ':' replaced by '='. All other arguments pass through unchanged; flag.Parse
// (ContinueOnError) then stops at the first argument it cannot parse,
// prints usage and returns the error.
func rewriteColonFlags(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if strings.HasPrefix(a, "-") && strings.Contains(a, ":") && !strings.Contains(a, "=") {
			out[i] = strings.Replace(a, ":", "=", 1)
			continue
		}
		out[i] = a
	}
	return out
}

// parseGroup maps spec.md's "any|user|power|admin" vocabulary onto
// webserver.UserGroup.
func parseGroup(s string) (webserver.UserGroup, error) {
	switch strings.ToLower(s) {
	case "any", "anyone":
		return webserver.Anyone, nil
	case "user":
		return webserver.User, nil
	case "power":
		return webserver.Power, nil
	case "admin":
		return webserver.Admin, nil
	default:
		return webserver.Anyone, fmt.Errorf("unknown group %q, want any|user|power|admin", s)
	}
}

// ViewerGroup resolves the configured viewer group string.
func (c Config) ViewerGroup() webserver.UserGroup {
	g, _ := parseGroup(c.Viewer)
	return g
}

// ConfiguratorGroup resolves the configured configurator group string.
func (c Config) ConfiguratorGroup() webserver.UserGroup {
	g, _ := parseGroup(c.Configurator)
	return g
}

// Resolution resolves the configured -size preset.
func (c Config) Resolution() Resolution {
	r, err := Preset(c.Size)
	if err != nil {
		// ParseFlags already validated this; Defaults()'s own Size is
		// always in range, so this only guards programmatic misuse.
		return sizePresets[0]
	}
	return r
}
