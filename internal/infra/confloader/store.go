// Package confloader loads and persists the webhost settings document.
package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/yndnr/webhost-go/internal/core/domain"
	"github.com/yndnr/webhost-go/internal/server/config"
)

// DefaultSettingsFile is the settings document used when none is given.
const DefaultSettingsFile = "webhost.yaml"

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "WEBHOST_"

// DefaultDotEnvFile is the name of the optional override file that sits
// next to the settings document.
const DefaultDotEnvFile = ".env"

// settingsFileMode keeps the document private; it may carry a certificate password.
const settingsFileMode = 0o600

// listKeys are split on commas when supplied through the environment.
var listKeys = map[string]bool{
	"web_server.allowed_hosts":        true,
	"web_server.cors_allowed_origins": true,
}

// Store loads, validates and persists the settings document.
//
// Load order (later sources override earlier):
//  1. Profile defaults
//  2. Settings document (YAML)
//  3. .env file beside the document (not persisted)
//  4. Environment variables (not persisted)
type Store struct {
	profile    config.Profile
	envPrefix  string
	dotEnvFile string
	logger     *slog.Logger
}

// Option is a function that configures the Store.
type Option func(*Store)

// WithProfile selects the defaults used for absent settings.
func WithProfile(p config.Profile) Option {
	return func(s *Store) {
		s.profile = p
	}
}

// WithEnvPrefix sets the environment variable prefix.
// An empty prefix disables environment overrides.
func WithEnvPrefix(prefix string) Option {
	return func(s *Store) {
		s.envPrefix = prefix
	}
}

// WithDotEnvFile sets the override file name, resolved relative to the
// settings document directory. An empty name disables it.
func WithDotEnvFile(name string) Option {
	return func(s *Store) {
		s.dotEnvFile = name
	}
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a new settings store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		profile:    config.ProfileProduction,
		envPrefix:  DefaultEnvPrefix,
		dotEnvFile: DefaultDotEnvFile,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load returns the effective settings for the document at path.
//
// A missing document is created from the profile defaults. A document that
// parses and validates is saved back so that newly introduced fields show
// up with their defaults. A document with errors is never overwritten.
func (s *Store) Load(path string) (*config.Settings, error) {
	k, err := s.loadDocument(path)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(k, false)
	if err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, err
	}

	if err := s.Save(cfg, path); err != nil {
		return nil, err
	}

	return s.applyOverrides(k, cfg, path)
}

// Save writes settings to path atomically, creating parent directories.
func (s *Store) Save(cfg *config.Settings, path string) error {
	data, err := Marshal(cfg)
	if err != nil {
		return domain.ErrSettingsWrite.WithDetails(path).WithCause(err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return domain.ErrSettingsWrite.WithDetails(path).WithCause(err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return domain.ErrSettingsWrite.WithDetails(path).WithCause(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return domain.ErrSettingsWrite.WithDetails(path).WithCause(err)
	}
	if err := tmp.Chmod(settingsFileMode); err != nil {
		tmp.Close()
		return domain.ErrSettingsWrite.WithDetails(path).WithCause(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return domain.ErrSettingsWrite.WithDetails(path).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return domain.ErrSettingsWrite.WithDetails(path).WithCause(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return domain.ErrSettingsWrite.WithDetails(path).WithCause(err)
	}

	s.logger.Debug("settings saved", "path", path)
	return nil
}

// Marshal renders settings as the YAML document written by Save.
// Keys are sorted, so unchanged settings always produce the same bytes.
func Marshal(cfg *config.Settings) ([]byte, error) {
	k, err := settingsTree(cfg)
	if err != nil {
		return nil, err
	}
	return k.Marshal(yaml.Parser())
}

// Tree returns settings as a nested map keyed by document keys.
func Tree(cfg *config.Settings) (map[string]any, error) {
	k, err := settingsTree(cfg)
	if err != nil {
		return nil, err
	}
	return k.Raw(), nil
}

// Flatten returns settings keyed by dotted document paths
// ("web_server.http_port").
func Flatten(cfg *config.Settings) (map[string]any, error) {
	k, err := settingsTree(cfg)
	if err != nil {
		return nil, err
	}
	return k.All(), nil
}

func settingsTree(cfg *config.Settings) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("flatten settings: %w", err)
	}
	return k, nil
}

// loadDocument layers the document over the profile defaults.
func (s *Store) loadDocument(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(config.Default(s.profile), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("settings file not found, writing defaults",
				"path", path,
				"profile", string(s.profile),
			)
			return k, nil
		}
		return nil, domain.ErrSettingsRead.WithDetails(path).WithCause(err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser(), koanf.WithMergeFunc(mergeDocument)); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, domain.ErrSettingsRead.WithDetails(path).WithCause(err)
		}
		return nil, domain.ErrSettingsParse.
			WithDetails(path).
			WithDiagnostics(diagnostics(err)).
			WithCause(err)
	}

	return k, nil
}

// mergeDocument merges the document over the defaults. Keys left without a
// value ("web_server:" with every field commented out) keep their defaults.
func mergeDocument(src, dest map[string]any) error {
	pruneNil(src)
	maps.Merge(src, dest)
	return nil
}

func pruneNil(m map[string]any) {
	for key, value := range m {
		switch v := value.(type) {
		case nil:
			delete(m, key)
		case map[string]any:
			pruneNil(v)
		}
	}
}

// applyOverrides overlays the .env file and process environment.
// The result is validated again but never persisted.
func (s *Store) applyOverrides(k *koanf.Koanf, cfg *config.Settings, path string) (*config.Settings, error) {
	if s.envPrefix == "" {
		return cfg, nil
	}

	overridden := false

	if s.dotEnvFile != "" {
		dotPath := filepath.Join(filepath.Dir(path), s.dotEnvFile)
		vars, err := godotenv.Read(dotPath)
		switch {
		case err == nil:
			if err := k.Load(mapProvider(s.envValues(vars)), nil); err != nil {
				return nil, fmt.Errorf("load %s: %w", dotPath, err)
			}
			overridden = true
			s.logger.Debug("settings overrides loaded", "path", dotPath)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, domain.ErrSettingsRead.WithDetails(dotPath).WithCause(err)
		}
	}

	if hasEnvWithPrefix(s.envPrefix) {
		provider := env.ProviderWithValue(s.envPrefix, ".", func(name, value string) (string, any) {
			key := s.envKey(name)
			return key, s.envValue(key, value)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("load env: %w", err)
		}
		overridden = true
	}

	if !overridden {
		return cfg, nil
	}

	effective, err := decode(k, true)
	if err != nil {
		return nil, annotate(err, "environment overrides")
	}
	if err := config.Verify(effective); err != nil {
		return nil, annotate(err, "environment overrides")
	}
	return effective, nil
}

// envKey maps WEBHOST_WEB_SERVER__HTTP_PORT to web_server.http_port.
func (s *Store) envKey(name string) string {
	name = strings.TrimPrefix(name, s.envPrefix)
	name = strings.ToLower(name)
	return strings.ReplaceAll(name, "__", ".")
}

func (s *Store) envValue(key, value string) any {
	if !listKeys[key] {
		return value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if items == nil {
		items = []string{}
	}
	return items
}

// envValues converts prefixed .env entries into a nested override map.
func (s *Store) envValues(vars map[string]string) map[string]any {
	out := make(map[string]any)
	for name, value := range vars {
		if !strings.HasPrefix(name, s.envPrefix) {
			continue
		}
		key := s.envKey(name)
		if key == "" {
			continue
		}
		setPath(out, strings.Split(key, "."), s.envValue(key, value))
	}
	return out
}

func setPath(m map[string]any, parts []string, value any) {
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

func hasEnvWithPrefix(prefix string) bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}
	return false
}

// decode unmarshals the merged tree into a fresh Settings value.
// The document is decoded strictly; environment strings are decoded weakly.
func decode(k *koanf.Koanf, weak bool) (*config.Settings, error) {
	var cfg config.Settings
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			Result:           &cfg,
			WeaklyTypedInput: weak,
			TagName:          "koanf",
		},
	})
	if err != nil {
		return nil, domain.ErrSettingsModel.
			WithDiagnostics(diagnostics(err)).
			WithCause(err)
	}
	return &cfg, nil
}

// annotate attaches details to a domain error without losing its code.
func annotate(err error, details string) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.WithDetails(details)
	}
	return fmt.Errorf("%s: %w", details, err)
}

// diagnostics splits a parser or decoder error into one line per finding.
func diagnostics(err error) []string {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range multi.Unwrap() {
			out = append(out, diagnostics(e)...)
		}
		if len(out) > 0 {
			return out
		}
	}

	var out []string
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasSuffix(line, "error(s) decoding:") {
			continue
		}
		out = append(out, strings.TrimPrefix(line, "* "))
	}
	return out
}
