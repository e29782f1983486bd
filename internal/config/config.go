// Package config loads and layers Legio's project configuration
// (.legio/config.yaml). Lookup generalizes the teacher's
// Rig.GetConfig/GetConfigWithSource wisp->bead->town->system stacking
// (internal/rig/config.go) into a simpler env->file->default chain: most
// Legio config keys are plain fields on a typed struct rather than a bag of
// bead labels, so the layered override only applies to the handful of
// values operators commonly want to flip from the shell without editing
// the file (log level, ports, feature toggles).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/legio/legio/internal/workspace"
)

// Source identifies which layer a config value came from.
type Source string

const (
	SourceEnv     Source = "env"
	SourceFile    Source = "file"
	SourceDefault Source = "default"
	SourceNone    Source = "none"
)

// AgentsConfig holds spawn-related limits (spec §4.L bounds).
type AgentsConfig struct {
	MaxDepth       int `yaml:"max_depth"`
	MaxConcurrent  int `yaml:"max_concurrent"`
	StaggerDelayMs int `yaml:"stagger_delay_ms"`
}

// WorktreesConfig controls where and how agent worktrees are created.
type WorktreesConfig struct {
	Root            string `yaml:"root"`
	CanonicalBranch string `yaml:"canonical_branch"`
}

// MergeConfig controls the tiered merge resolver (spec §4.G).
type MergeConfig struct {
	AutoResolveEnabled bool `yaml:"auto_resolve_enabled"`
	ReimagineEnabled   bool `yaml:"reimagine_enabled"`
}

// WatchdogConfig controls liveness polling and escalation (spec §4.H).
type WatchdogConfig struct {
	TickIntervalMs    int `yaml:"tick_interval_ms"`
	StaleThresholdMs  int `yaml:"stale_threshold_ms"`
	MaxEscalationRung int `yaml:"max_escalation_rung"`
	MaxRetries        int `yaml:"max_retries"`
}

// ModelsConfig names the external binaries driving agents and triage.
type ModelsConfig struct {
	AgentCommand  string   `yaml:"agent_command"`
	AgentArgs     []string `yaml:"agent_args"`
	TriageCommand string   `yaml:"triage_command"`
	TriageArgs    []string `yaml:"triage_args"`
	MergeCommand  string   `yaml:"merge_command"`
	MergeArgs     []string `yaml:"merge_args"`
}

// LoggingConfig controls the zap logger built by internal/logx.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// AutopilotConfig controls the in-process tick daemon (spec §4.K).
type AutopilotConfig struct {
	TickIntervalMs    int  `yaml:"tick_interval_ms"`
	AutoMerge         bool `yaml:"auto_merge"`
	AutoCleanWorktree bool `yaml:"auto_clean_worktrees"`
	AssignmentStallMs int  `yaml:"assignment_stall_ms"`
}

// ServerConfig controls the REST/WS server (spec §4.N).
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	BroadcastIntervalMs int    `yaml:"broadcast_interval_ms"`
}

// Config is the parsed shape of .legio/config.yaml.
type Config struct {
	Project    string          `yaml:"project"`
	Agents     AgentsConfig    `yaml:"agents"`
	Worktrees  WorktreesConfig `yaml:"worktrees"`
	Merge      MergeConfig     `yaml:"merge"`
	Watchdog   WatchdogConfig  `yaml:"watchdog"`
	Models     ModelsConfig    `yaml:"models"`
	Logging    LoggingConfig   `yaml:"logging"`
	Autopilot  AutopilotConfig `yaml:"autopilot"`
	Server     ServerConfig    `yaml:"server"`
}

// Defaults returns the compiled-in system defaults (layer 3 of the lookup
// chain), used both to seed a freshly-initialized project and as the
// fallback for any key absent from the file.
func Defaults() Config {
	return Config{
		Agents: AgentsConfig{
			MaxDepth:       3,
			MaxConcurrent:  4,
			StaggerDelayMs: 1500,
		},
		Worktrees: WorktreesConfig{
			Root:            ".legio/worktrees",
			CanonicalBranch: "main",
		},
		Merge: MergeConfig{
			AutoResolveEnabled: true,
			ReimagineEnabled:   true,
		},
		Watchdog: WatchdogConfig{
			TickIntervalMs:    10_000,
			StaleThresholdMs:  5 * 60 * 1000,
			MaxEscalationRung: 3,
			MaxRetries:        3,
		},
		Models: ModelsConfig{
			AgentCommand:  "claude",
			TriageCommand: "claude",
			MergeCommand:  "claude",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Autopilot: AutopilotConfig{
			TickIntervalMs:    5_000,
			AutoMerge:         true,
			AutoCleanWorktree: false,
			AssignmentStallMs: 15 * 60 * 1000,
		},
		Server: ServerConfig{
			Host:                "127.0.0.1",
			Port:                4717,
			BroadcastIntervalMs: 2_000,
		},
	}
}

// WatchdogTickInterval returns the configured tick interval as a
// time.Duration.
func (c Config) WatchdogTickInterval() time.Duration {
	return time.Duration(c.Watchdog.TickIntervalMs) * time.Millisecond
}

// StaleThreshold returns the configured stale threshold as a
// time.Duration.
func (c Config) StaleThreshold() time.Duration {
	return time.Duration(c.Watchdog.StaleThresholdMs) * time.Millisecond
}

// AutopilotTickInterval returns the configured autopilot tick interval.
func (c Config) AutopilotTickInterval() time.Duration {
	return time.Duration(c.Autopilot.TickIntervalMs) * time.Millisecond
}

// AssignmentStallTimeout returns how long a bound task may go without
// LastActivity advancing before CheckStalledAssignments escalates it.
func (c Config) AssignmentStallTimeout() time.Duration {
	return time.Duration(c.Autopilot.AssignmentStallMs) * time.Millisecond
}

// BroadcastInterval returns the configured broadcaster poll interval.
func (c Config) BroadcastInterval() time.Duration {
	return time.Duration(c.Server.BroadcastIntervalMs) * time.Millisecond
}

// StaggerDelay returns the configured spawn stagger delay.
func (c Config) StaggerDelay() time.Duration {
	return time.Duration(c.Agents.StaggerDelayMs) * time.Millisecond
}

// WorktreesRoot resolves the configured worktree root to an absolute path
// under the project root.
func (c Config) WorktreesRoot(projectRoot string) string {
	if filepath.IsAbs(c.Worktrees.Root) {
		return c.Worktrees.Root
	}
	return filepath.Join(projectRoot, c.Worktrees.Root)
}

// Load reads .legio/config.yaml under projectRoot, falling back to
// compiled-in defaults for any field the file leaves zero. A missing file
// is not an error: it yields pure defaults, matching spec §7's rule that
// stores never throw on "file missing".
func Load(projectRoot string) (Config, error) {
	cfg := Defaults()

	path := filepath.Join(projectRoot, workspace.PrimaryMarker)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	fileCfg := Defaults()
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return fileCfg, nil
}

// LoadFromCwd locates the project root from the current working directory
// and loads its config.
func LoadFromCwd() (Config, string, error) {
	root, err := workspace.FindFromCwdOrError()
	if err != nil {
		return Config{}, "", err
	}
	cfg, err := Load(root)
	return cfg, root, err
}

// Save writes cfg to .legio/config.yaml under projectRoot, creating the
// .legio directory if needed.
func Save(projectRoot string, cfg Config) error {
	dir := filepath.Join(projectRoot, ".legio")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating .legio directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644)
}

// envPrefix namespaces environment overrides, e.g. LEGIO_WATCHDOG_TICK_INTERVAL_MS.
const envPrefix = "LEGIO_"

// Result holds a single config lookup result along with its source,
// mirroring the teacher's ConfigResult/ConfigSource shape.
type Result struct {
	Value  string
	Source Source
}

// Lookup resolves a single override-style string key through the
// env -> file-extra -> default chain. This is used for ad-hoc operational
// knobs (e.g. "log_level") that operators commonly want to override from
// the shell without editing the YAML file; most Config fields are read
// directly off the typed struct instead.
func Lookup(cfg Config, extra map[string]string, key string) Result {
	envKey := envPrefix + strings.ToUpper(key)
	if v, ok := os.LookupEnv(envKey); ok {
		return Result{Value: v, Source: SourceEnv}
	}
	if v, ok := extra[key]; ok {
		return Result{Value: v, Source: SourceFile}
	}
	if v, ok := defaultExtras(cfg)[key]; ok {
		return Result{Value: v, Source: SourceDefault}
	}
	return Result{Value: "", Source: SourceNone}
}

// LookupInt is the int-typed convenience form of Lookup.
func LookupInt(cfg Config, extra map[string]string, key string) (int, Source) {
	res := Lookup(cfg, extra, key)
	if res.Source == SourceNone {
		return 0, res.Source
	}
	n, err := strconv.Atoi(res.Value)
	if err != nil {
		return 0, SourceNone
	}
	return n, res.Source
}

func defaultExtras(cfg Config) map[string]string {
	return map[string]string{
		"log_level": cfg.Logging.Level,
	}
}
