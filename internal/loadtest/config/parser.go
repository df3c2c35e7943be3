package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/surge/internal/loadtest"
)

// LoadConfig loads a workload file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadConfig(path string) (*TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*TestConfig, error) {
	var config TestConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &config, nil
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ParseStages parses the compact stage form used on the command line:
// "30s:10,1m:10,30s:0" (duration:target pairs).
func ParseStages(s string) ([]loadtest.Stage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var stages []loadtest.Stage
	for i, part := range strings.Split(s, ",") {
		dur, target, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("stage %d: want duration:target, got %q", i, part)
		}
		d, err := ParseDurationString(dur)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(target))
		if err != nil {
			return nil, fmt.Errorf("stage %d: invalid target %q", i, target)
		}
		if d < 0 || n < 0 {
			return nil, fmt.Errorf("stage %d: duration and target must be >= 0", i)
		}
		stages = append(stages, loadtest.Stage{Target: n, Duration: d})
	}
	return stages, nil
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_$][A-Za-z0-9_.$-]*)\s*\}\}`)

// ResolveVariables replaces {{name}} placeholders with values from vars.
// Unresolved variables are left as-is.
func ResolveVariables(input string, vars map[string]string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return placeholder.ReplaceAllStringFunc(input, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// Placeholders returns the variable names referenced by input.
func Placeholders(input string) []string {
	var out []string
	for _, m := range placeholder.FindAllStringSubmatch(input, -1) {
		out = append(out, m[1])
	}
	return out
}

// MergeVariables merges multiple variable maps in order.
// Later maps override earlier ones.
func MergeVariables(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// BaseVariables returns the file-level variables plus baseUrl.
func (c *TestConfig) BaseVariables() map[string]string {
	vars := MergeVariables(c.Variables)
	if c.Settings.BaseURL != "" {
		vars["baseUrl"] = c.Settings.BaseURL
		vars["baseURL"] = c.Settings.BaseURL
	}
	return vars
}
