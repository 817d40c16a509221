package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "VIDFETCH_LOG_"

// LogConfig is the file/environment form of Config.
type LogConfig struct {
	Level      string          `json:"level"`
	Format     string          `json:"format"`
	Output     string          `json:"output"`
	Components map[string]bool `json:"components"`
	ShowCaller bool            `json:"show_caller"`
	Timestamp  bool            `json:"timestamp"`
	Rotation   *RotationConfig `json:"rotation,omitempty"`
}

// RotationConfig applies only to "file:" outputs.
type RotationConfig struct {
	MaxSize    string `json:"max_size"`    // e.g. "10MB"
	MaxAge     string `json:"max_age"`     // e.g. "7d", "24h"
	MaxBackups int    `json:"max_backups"` // rotated files kept
	Compress   bool   `json:"compress"`    // gzip rotated files
}

// DefaultLogConfig returns the defaults used by the CLI.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:  "INFO",
		Format: "text",
		Output: "stderr",
		Components: map[string]bool{
			string(ComponentApp):   true,
			string(ComponentCache): true,
		},
	}
}

// LoadConfigFromFile loads configuration from a JSON file
func LoadConfigFromFile(filename string) (*LogConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config LogConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &config, nil
}

// SaveConfigToFile saves configuration to a JSON file
func (c *LogConfig) SaveConfigToFile(filename string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ToLoggerConfig converts LogConfig to Config, opening the output if needed.
func (c *LogConfig) ToLoggerConfig() (*Config, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}
	format, err := parseFormat(c.Format)
	if err != nil {
		return nil, fmt.Errorf("parse format: %w", err)
	}
	output, err := c.openOutput()
	if err != nil {
		return nil, fmt.Errorf("parse output: %w", err)
	}

	components := make(map[Component]bool, len(c.Components))
	for name, enabled := range c.Components {
		components[Component(name)] = enabled
	}

	return &Config{
		Level:      level,
		Format:     format,
		Output:     output,
		Components: components,
		ShowCaller: c.ShowCaller,
		Timestamp:  c.Timestamp,
	}, nil
}

// openOutput resolves Output, wrapping file outputs in a RotatingWriter when
// rotation is configured.
func (c *LogConfig) openOutput() (io.Writer, error) {
	path, isFile := strings.CutPrefix(c.Output, "file:")
	if !isFile || c.Rotation == nil {
		return parseOutput(c.Output)
	}
	maxSize, err := parseSize(c.Rotation.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("parse max size: %w", err)
	}
	maxAge, err := parseDuration(c.Rotation.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("parse max age: %w", err)
	}
	return NewRotatingWriter(path, maxSize, maxAge, c.Rotation.MaxBackups, c.Rotation.Compress)
}

func parseLevel(levelStr string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown level: %s", levelStr)
	}
}

func parseFormat(formatStr string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(formatStr)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "color", "colored":
		return FormatColor, nil
	default:
		return FormatText, fmt.Errorf("unknown format: %s", formatStr)
	}
}

func parseOutput(outputStr string) (io.Writer, error) {
	switch strings.ToLower(outputStr) {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	case "null", "none":
		return io.Discard, nil
	}
	if path, ok := strings.CutPrefix(outputStr, "file:"); ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		return file, nil
	}
	return nil, fmt.Errorf("unknown output: %s", outputStr)
}

// CreateLoggerFromConfig validates config and builds a Logger from it.
func CreateLoggerFromConfig(config *LogConfig) (*Logger, error) {
	if err := config.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	loggerConfig, err := config.ToLoggerConfig()
	if err != nil {
		return nil, fmt.Errorf("convert config: %w", err)
	}
	return New(loggerConfig), nil
}

// EnvironmentConfig overlays VIDFETCH_LOG_* variables on DefaultLogConfig.
func EnvironmentConfig() *LogConfig {
	config := DefaultLogConfig()

	if level := os.Getenv(envPrefix + "LEVEL"); level != "" {
		config.Level = level
	}
	if format := os.Getenv(envPrefix + "FORMAT"); format != "" {
		config.Format = format
	}
	if output := os.Getenv(envPrefix + "OUTPUT"); output != "" {
		config.Output = output
	}
	if caller := os.Getenv(envPrefix + "CALLER"); caller != "" {
		config.ShowCaller = caller == "true" || caller == "1"
	}
	if timestamp := os.Getenv(envPrefix + "TIMESTAMP"); timestamp != "" {
		config.Timestamp = timestamp == "true" || timestamp == "1"
	}
	if size := os.Getenv(envPrefix + "MAX_SIZE"); size != "" {
		config.Rotation = &RotationConfig{MaxSize: size, MaxBackups: 3, Compress: true}
	}
	if components := os.Getenv(envPrefix + "COMPONENTS"); components != "" {
		config.Components = make(map[string]bool)
		for _, comp := range strings.Split(components, ",") {
			if comp = strings.TrimSpace(comp); comp != "" {
				config.Components[comp] = true
			}
		}
	}

	return config
}

// ValidateConfig checks every field without opening the output.
func (c *LogConfig) ValidateConfig() error {
	if _, err := parseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid level: %w", err)
	}
	if _, err := parseFormat(c.Format); err != nil {
		return fmt.Errorf("invalid format: %w", err)
	}
	switch out := strings.ToLower(c.Output); {
	case out == "", out == "stdout", out == "stderr", out == "null", out == "none":
	case strings.HasPrefix(c.Output, "file:") && len(c.Output) > len("file:"):
	default:
		return fmt.Errorf("invalid output: %s", c.Output)
	}
	if c.Rotation != nil {
		if err := c.Rotation.Validate(); err != nil {
			return fmt.Errorf("invalid rotation config: %w", err)
		}
	}
	return nil
}

// Validate validates rotation configuration
func (r *RotationConfig) Validate() error {
	if _, err := parseSize(r.MaxSize); err != nil {
		return fmt.Errorf("invalid max_size: %w", err)
	}
	if _, err := parseDuration(r.MaxAge); err != nil {
		return fmt.Errorf("invalid max_age: %w", err)
	}
	if r.MaxBackups < 0 {
		return fmt.Errorf("max_backups must be non-negative")
	}
	return nil
}

// splitNumber splits "100MB" into 100 and "MB".
func splitNumber(s string) (int64, string, error) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, "", fmt.Errorf("no number found in %q", s)
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse number: %w", err)
	}
	return n, strings.TrimSpace(s[i:]), nil
}

// parseSize parses "100MB", "1GB" into bytes. Empty means unlimited.
func parseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(sizeStr)
	if sizeStr == "" {
		return 0, nil
	}
	num, unit, err := splitNumber(sizeStr)
	if err != nil {
		return 0, err
	}
	switch strings.ToUpper(unit) {
	case "B", "":
		return num, nil
	case "KB":
		return num << 10, nil
	case "MB":
		return num << 20, nil
	case "GB":
		return num << 30, nil
	default:
		return 0, fmt.Errorf("unknown unit: %s", unit)
	}
}

// parseDuration parses "7d", "24h", "30m" into a Duration. Empty means unlimited.
func parseDuration(durationStr string) (time.Duration, error) {
	durationStr = strings.TrimSpace(durationStr)
	if durationStr == "" {
		return 0, nil
	}
	num, unit, err := splitNumber(durationStr)
	if err != nil {
		return 0, err
	}
	switch strings.ToLower(unit) {
	case "s", "sec", "second", "seconds":
		return time.Duration(num) * time.Second, nil
	case "m", "min", "minute", "minutes":
		return time.Duration(num) * time.Minute, nil
	case "h", "hour", "hours":
		return time.Duration(num) * time.Hour, nil
	case "d", "day", "days":
		return time.Duration(num) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown unit: %s", unit)
	}
}
