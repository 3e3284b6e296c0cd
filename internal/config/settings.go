package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config keys
const (
	KeyRoot     = "root"
	KeyJSON     = "json"
	KeyNoColor  = "no-color"
	KeySpecsDir = "specs-dir"

	KeyStorageBackend     = "storage.backend"
	KeyStoragePath        = "storage.path"
	KeyStorageDSN         = "storage.dsn"
	KeyStorageS3Bucket    = "storage.s3.bucket"
	KeyStorageS3Region    = "storage.s3.region"
	KeyStorageS3Endpoint  = "storage.s3.endpoint"
	KeyStorageS3PathStyle = "storage.s3.path-style"
	KeyStorageS3Key       = "storage.s3.key"

	KeySchedulerAlternates = "scheduler.alternates"

	KeyVelocityStaleDays    = "velocity.stale-days"
	KeyVelocityDefaultDays  = "velocity.default-days"
	KeyVelocityBlockedLimit = "velocity.blocked-limit"

	KeyAuditArtifacts = "audit.artifacts"

	KeyGitFetch         = "git.fetch"
	KeyGitBranchPattern = "git.branch-pattern"

	KeyHookTimeout  = "hook.timeout"
	KeyHooksTimeout = "hooks.timeout"

	KeyTranscriptExtractor = "transcript.extractor"
	KeyTranscriptModel     = "transcript.model"
)

// Defaults that other packages reference when config is unavailable.
const (
	DefaultSpecsDir         = "specs"
	DefaultAlternates       = 3
	DefaultStaleDays        = 7
	DefaultVelocityDays     = 3.0
	DefaultBlockedLimit     = 5
	DefaultBranchPattern    = `feature/(SPEC-[A-Z0-9-]+)`
	DefaultHookTimeout      = 30 * time.Second
	DefaultHooksTimeout     = 10 * time.Second
	DefaultExtractor        = ExtractorRegex
	DefaultTranscriptModel  = "claude-haiku-4-5"
	DefaultStorageBackend   = "json"
	DefaultVerificationFile = "verification.py"
)

// Transcript extractor choices.
const (
	ExtractorRegex  = "regex"
	ExtractorClaude = "claude"
)

var validExtractors = map[string]bool{
	ExtractorRegex:  true,
	ExtractorClaude: true,
}

func registerDefaults() {
	v.SetDefault(KeyJSON, false)
	v.SetDefault(KeyNoColor, false)
	v.SetDefault(KeySpecsDir, DefaultSpecsDir)

	v.SetDefault(KeyStorageBackend, DefaultStorageBackend)
	v.SetDefault(KeyStoragePath, "")
	v.SetDefault(KeyStorageDSN, "")
	v.SetDefault(KeyStorageS3Bucket, "")
	v.SetDefault(KeyStorageS3Region, "us-east-1")
	v.SetDefault(KeyStorageS3Endpoint, "")
	v.SetDefault(KeyStorageS3PathStyle, false)
	v.SetDefault(KeyStorageS3Key, "")

	v.SetDefault(KeySchedulerAlternates, DefaultAlternates)

	v.SetDefault(KeyVelocityStaleDays, DefaultStaleDays)
	v.SetDefault(KeyVelocityDefaultDays, DefaultVelocityDays)
	v.SetDefault(KeyVelocityBlockedLimit, DefaultBlockedLimit)

	v.SetDefault(KeyAuditArtifacts, []string{DefaultVerificationFile})

	v.SetDefault(KeyGitFetch, true)
	v.SetDefault(KeyGitBranchPattern, DefaultBranchPattern)

	v.SetDefault(KeyHookTimeout, DefaultHookTimeout.String())
	v.SetDefault(KeyHooksTimeout, DefaultHooksTimeout.String())

	v.SetDefault(KeyTranscriptExtractor, DefaultExtractor)
	v.SetDefault(KeyTranscriptModel, DefaultTranscriptModel)
}

// VelocitySettings tunes the analytics engine.
type VelocitySettings struct {
	StaleDays    int     `yaml:"stale-days"`
	DefaultDays  float64 `yaml:"default-days"`
	BlockedLimit int     `yaml:"blocked-limit"`
}

// GetVelocitySettings returns analytics tuning, replacing non-positive values
// with defaults.
func GetVelocitySettings() VelocitySettings {
	s := VelocitySettings{
		StaleDays:    GetInt(KeyVelocityStaleDays),
		DefaultDays:  GetFloat64(KeyVelocityDefaultDays),
		BlockedLimit: GetInt(KeyVelocityBlockedLimit),
	}
	if s.StaleDays <= 0 {
		s.StaleDays = DefaultStaleDays
	}
	if s.DefaultDays <= 0 {
		s.DefaultDays = DefaultVelocityDays
	}
	if s.BlockedLimit <= 0 {
		s.BlockedLimit = DefaultBlockedLimit
	}
	return s
}

// GetAlternates returns how many alternates the scheduler lists.
func GetAlternates() int {
	n := GetInt(KeySchedulerAlternates)
	if n < 0 {
		return DefaultAlternates
	}
	return n
}

// GetTranscriptExtractor returns the configured extractor, warning and
// falling back to regex on unknown values.
func GetTranscriptExtractor() string {
	value := strings.ToLower(strings.TrimSpace(GetString(KeyTranscriptExtractor)))
	if value == "" {
		return DefaultExtractor
	}
	if !validExtractors[value] {
		fmt.Fprintf(os.Stderr, "Warning: invalid transcript.extractor %q in config (valid: regex, claude), using default 'regex'\n", value)
		return DefaultExtractor
	}
	return value
}

// GetHookTimeout bounds each update issued by the session-end hook.
func GetHookTimeout() time.Duration {
	if d := GetDuration(KeyHookTimeout); d > 0 {
		return d
	}
	return DefaultHookTimeout
}

// GetHooksTimeout bounds each transition hook script.
func GetHooksTimeout() time.Duration {
	if d := GetDuration(KeyHooksTimeout); d > 0 {
		return d
	}
	return DefaultHooksTimeout
}

// GetAuditArtifacts lists file names whose presence marks a spec as verified.
func GetAuditArtifacts() []string {
	names := GetStringSlice(KeyAuditArtifacts)
	if len(names) == 0 {
		return []string{DefaultVerificationFile}
	}
	return names
}

// ProjectConfig is the document written by WriteDefaultConfig.
type ProjectConfig struct {
	SpecsDir  string           `yaml:"specs-dir"`
	Storage   StorageConfig    `yaml:"storage"`
	Scheduler SchedulerConfig  `yaml:"scheduler"`
	Velocity  VelocitySettings `yaml:"velocity"`
	Audit     AuditConfig      `yaml:"audit"`
	Git       GitConfig        `yaml:"git"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

// SchedulerConfig tunes next-action recommendations.
type SchedulerConfig struct {
	Alternates int `yaml:"alternates"`
}

// AuditConfig tunes anomaly detection.
type AuditConfig struct {
	Artifacts []string `yaml:"artifacts"`
}

// GitConfig tunes branch sync.
type GitConfig struct {
	Fetch         bool   `yaml:"fetch"`
	BranchPattern string `yaml:"branch-pattern"`
}

// DefaultProjectConfig returns the settings a fresh project starts with.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		SpecsDir:  DefaultSpecsDir,
		Storage:   StorageConfig{Backend: DefaultStorageBackend},
		Scheduler: SchedulerConfig{Alternates: DefaultAlternates},
		Velocity: VelocitySettings{
			StaleDays:    DefaultStaleDays,
			DefaultDays:  DefaultVelocityDays,
			BlockedLimit: DefaultBlockedLimit,
		},
		Audit: AuditConfig{Artifacts: []string{DefaultVerificationFile}},
		Git:   GitConfig{Fetch: true, BranchPattern: DefaultBranchPattern},
	}
}

// WriteDefaultConfig creates root/config.yaml with default settings unless it
// already exists. It reports whether a file was written.
func WriteDefaultConfig(root string) (bool, error) {
	path := filepath.Join(root, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	data, err := yaml.Marshal(DefaultProjectConfig())
	if err != nil {
		return false, fmt.Errorf("encode default config: %w", err)
	}
	header := []byte("# orch project configuration\n")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
