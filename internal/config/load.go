package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override. A double underscore
	// separates nesting levels: VIDSHARE_STORAGE__DATA_PATH sets
	// storage.data_path.
	EnvPrefix = "VIDSHARE_"
	// PathEnvVar names the YAML file to load when no path is passed.
	PathEnvVar = "VIDSHARE_CONFIG"
)

// Load layers defaults, the YAML file at path (or $VIDSHARE_CONFIG) and the
// environment, then validates the result. An empty path with no env var
// skips the file layer.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = strings.TrimSpace(os.Getenv(PathEnvVar))
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := splitListValues(k); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps VIDSHARE_SECTION__FIELD to section.field. Variables without a
// section separator are not configuration keys.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	if !strings.Contains(key, "__") {
		return ""
	}
	return strings.ReplaceAll(key, "__", ".")
}

// listKeys are the slice settings that may arrive from the environment as one
// comma separated string.
var listKeys = []string{
	"server.cors_origins",
	"realtime.allowed_origins",
	"realtime.redis.addrs",
}

func splitListValues(k *koanf.Koanf) error {
	for _, key := range listKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				values = append(values, trimmed)
			}
		}
		if err := k.Set(key, values); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-section rules tags cannot
// express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			fields := make([]string, 0, len(invalid))
			for _, fe := range invalid {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.Postgres.DSN) == "" {
		return errors.New("invalid configuration: storage.postgres.dsn is required for the postgres driver")
	}
	if c.Realtime.Bus == "redis" && len(c.Realtime.Redis.Addrs) == 0 {
		return errors.New("invalid configuration: realtime.redis.addrs is required for the redis bus")
	}
	if c.Auth.RevocationStore == "postgres" && strings.TrimSpace(c.RevocationDSN()) == "" {
		return errors.New("invalid configuration: auth.revocation_dsn or storage.postgres.dsn is required for postgres revocations")
	}
	if c.Storage.Postgres.MinConns > c.Storage.Postgres.MaxConns && c.Storage.Postgres.MaxConns > 0 {
		return errors.New("invalid configuration: storage.postgres.min_conns exceeds max_conns")
	}
	return nil
}

// RevocationDSN returns the DSN for the token revocation table.
func (c Config) RevocationDSN() string {
	if dsn := strings.TrimSpace(c.Auth.RevocationDSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(c.Storage.Postgres.DSN)
}
