package schema

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dasos/peek/pkg/tmpl"
)

// Option configures the loader.
type Option func(*loader)

// WithLogger sets the logger used for non-fatal load diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(l *loader) {
		if log != nil {
			l.log = log
		}
	}
}

type loader struct {
	log *slog.Logger
}

// Load reads every *.yml / *.yaml file from the given directories and builds
// the source registry. The file stem becomes the source slug. Any invalid
// file, compile error or duplicate slug aborts the load; a missing directory
// is skipped with a warning.
func Load(dirs []string, opts ...Option) (*Registry, error) {
	l := &loader{log: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}

	var unique []string
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		unique = append(unique, dir)
	}
	if len(unique) == 0 {
		return nil, ErrNoConfigDirs
	}

	sources := make(map[string]*Source)
	fileBySlug := make(map[string]string)

	for _, dir := range unique {
		info, err := os.Stat(dir)
		if err != nil {
			l.log.Warn("config directory does not exist, skipping", slog.String("dir", dir))
			continue
		}
		if !info.IsDir() {
			l.log.Warn("config path is not a directory, skipping", slog.String("dir", dir))
			continue
		}

		files, err := configFiles(dir)
		if err != nil {
			return nil, fmt.Errorf("reading config dir %s: %w", dir, err)
		}

		for _, path := range files {
			slug := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if prev, dup := fileBySlug[slug]; dup {
				return nil, fmt.Errorf("%w: %q found in %s and %s", ErrDuplicateSlug, slug, path, prev)
			}

			src, err := loadFile(path, slug)
			if err != nil {
				return nil, err
			}
			sources[slug] = src
			fileBySlug[slug] = path
		}
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w in directories: %s", ErrNoConfigs, strings.Join(unique, ", "))
	}

	l.log.Info("loaded source configs",
		slog.Int("sources", len(sources)),
		slog.Int("dirs", len(unique)),
	)
	return newRegistry(sources), nil
}

func configFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func loadFile(path, slug string) (*Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s must be a mapping", ErrInvalidConfig, path)
	}

	displayName, ok := doc["display_name"].(string)
	if !ok || displayName == "" {
		return nil, fmt.Errorf("%w: %s missing 'display_name' string", ErrInvalidConfig, path)
	}

	fields, err := parseFields(doc["fields"], path)
	if err != nil {
		return nil, err
	}

	rules, err := parseRules(doc["highlight_rules"], path)
	if err != nil {
		return nil, err
	}

	src := &Source{
		Slug:        slug,
		DisplayName: displayName,
		Fields:      make(map[string]*tmpl.Template, len(RequiredFields)),
		Rules:       rules,
	}
	for name, text := range fields {
		t, err := tmpl.Compile(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s field %q: %v", ErrInvalidConfig, path, name, err)
		}
		if name == FieldCoalesce {
			src.Coalesce = t
		} else {
			src.Fields[name] = t
		}
	}
	return src, nil
}

func parseFields(v any, path string) (map[string]string, error) {
	rawFields, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s missing 'fields' mapping", ErrInvalidConfig, path)
	}

	fields := make(map[string]string, len(rawFields))
	for name, val := range rawFields {
		text, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s field %q must be a string template", ErrInvalidConfig, path, name)
		}
		fields[name] = text
	}

	var missing, unexpected []string
	for _, name := range RequiredFields {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range fields {
		if !isAllowedField(name) {
			unexpected = append(unexpected, name)
		}
	}
	sort.Strings(unexpected)

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s missing required field(s): %s", ErrInvalidConfig, path, strings.Join(missing, ", "))
	}
	if len(unexpected) > 0 {
		return nil, fmt.Errorf("%w: %s fields contain unsupported key(s): %s", ErrInvalidConfig, path, strings.Join(unexpected, ", "))
	}
	return fields, nil
}

func isAllowedField(name string) bool {
	if name == FieldCoalesce {
		return true
	}
	for _, required := range RequiredFields {
		if name == required {
			return true
		}
	}
	return false
}

func parseRules(v any, path string) ([]HighlightRule, error) {
	if v == nil {
		return nil, nil
	}
	rawRules, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s highlight_rules must be a list", ErrInvalidConfig, path)
	}

	rules := make([]HighlightRule, 0, len(rawRules))
	for i, rawRule := range rawRules {
		rule, ok := rawRule.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s highlight rule #%d must be a mapping", ErrInvalidConfig, path, i)
		}

		when, ok := rule["when"].(string)
		if !ok || when == "" {
			return nil, fmt.Errorf("%w: %s highlight rule #%d missing 'when' expression", ErrInvalidConfig, path, i)
		}
		class, ok := rule["class"].(string)
		if !ok || class == "" {
			return nil, fmt.Errorf("%w: %s highlight rule #%d missing 'class' string", ErrInvalidConfig, path, i)
		}

		pred, err := tmpl.CompilePredicate(when)
		if err != nil {
			return nil, fmt.Errorf("%w: %s highlight rule #%d: %v", ErrInvalidConfig, path, i, err)
		}
		rules = append(rules, HighlightRule{When: pred, Class: class})
	}
	return rules, nil
}
