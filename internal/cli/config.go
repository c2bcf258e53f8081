package cli

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the CLI reads.
const EnvPrefix = "REGISTRY"

// Settings holds values shared by every command. A key such as "log.level"
// is read from the REGISTRY_LOG_LEVEL environment variable.
type Settings struct {
	DB     string    `mapstructure:"db"`
	Output string    `mapstructure:"output"`
	Log    LogConfig `mapstructure:"log"`
}

// LogConfig controls the console logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func defaultSettings() Settings {
	return Settings{
		DB:     "registry.db",
		Output: "json",
		Log:    LogConfig{Level: "warn"},
	}
}

// loadSettings merges the optional config file, REGISTRY_* environment
// variables and the persistent flags of cmd, flags winning.
func loadSettings(cmd *cobra.Command, configFile string) (Settings, error) {
	cfg := defaultSettings()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("cli: read config %s: %w", configFile, err)
		}
	}

	flags := cmd.Flags()
	for key, name := range map[string]string{
		"db":        "db",
		"output":    "output",
		"log.level": "log-level",
	} {
		if flag := flags.Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return Settings{}, fmt.Errorf("cli: bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Settings{}, fmt.Errorf("cli: decode settings: %w", err)
	}
	return cfg, nil
}

// bindEnvs registers every key of cfg so Unmarshal consults the matching
// environment variable even when no config file mentions it.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(field.Name)
		}
		key := append(append([]string(nil), parts...), tag)
		if field.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}

func (s Settings) logger(cmd *cobra.Command) zerolog.Logger {
	level, err := zerolog.ParseLevel(s.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
