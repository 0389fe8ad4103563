package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tcriess/lightspeed-meet/globals"
)

const (
	defaultSessionHours    = 24
	defaultEmptyTimeout    = 600
	defaultMaxParticipants = 50
	defaultSweepSpec       = "@every 1m"
	defaultAgentURL        = "http://localhost:8081"
)

// Config is the global configuration object which is filled via the configuration file
// and the LSMEET_* environment.
type Config struct {
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	RoomServiceConfig RoomServiceConfig `mapstructure:"roomservice"`
	AgentConfig       AgentConfig       `mapstructure:"agent"`
	AuthConfig        AuthConfig        `mapstructure:"auth"`
	NotifyConfig      NotifyConfig      `mapstructure:"notify"`
	OIDCConfigs       []OIDCConfig      `mapstructure:"oidc"`
	LogLevel          string            `mapstructure:"log_level"`
	LockPath          string            `mapstructure:"lock_path"`
	SweepSpec         string            `mapstructure:"sweep_spec"`
}

// PersistenceConfig configures the persistence backend. Type is one of
// "sqlite", "postgres" (both via gorm) or "buntdb" (file-backed).
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// RoomServiceConfig points at the external media room service. All rooms are
// allocated there, join credentials are signed with the api key/secret pair.
type RoomServiceConfig struct {
	Host            string `mapstructure:"host"`
	APIKey          string `mapstructure:"api_key"`
	APISecret       string `mapstructure:"api_secret"`
	EmptyTimeout    uint32 `mapstructure:"empty_timeout"` // seconds
	MaxParticipants uint32 `mapstructure:"max_participants"`
}

// AgentConfig points at the external transcription agent process.
type AgentConfig struct {
	URL string `mapstructure:"url"`
}

// AuthConfig configures host authentication. Host accounts are seeded from
// the Hosts list at startup, all with SeedPassword, and never created via
// the public API.
type AuthConfig struct {
	JWTSecret    string     `mapstructure:"jwt_secret"`
	SessionHours int        `mapstructure:"session_hours"`
	SeedPassword string     `mapstructure:"seed_password"`
	Hosts        []SeedHost `mapstructure:"host"`
}

type SeedHost struct {
	Email string `mapstructure:"email"`
	Name  string `mapstructure:"name"`
}

// An OIDCConfig object configures an OpenID Connect provider that may be used
// to authenticate hosts as an alternative to the local password login. Hosts
// provide an ID token, the authentication is then performed via verification
// of the token, and the token's e-mail claim must match a seeded host account.
type OIDCConfig struct {
	Name        string `mapstructure:"name"`
	ClientId    string `mapstructure:"client_id"`
	ProviderUrl string `mapstructure:"provider_url"` // f.e. "https://accounts.google.com"
}

// NotifyConfig configures the outbound notes webhook and the public frontend
// base URL used to build invite links. An empty EmailWebhookURL disables the
// webhook path entirely.
type NotifyConfig struct {
	EmailWebhookURL string `mapstructure:"email_webhook_url"`
	FrontendURL     string `mapstructure:"frontend_url"`
	CORSOrigin      string `mapstructure:"cors_origin"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("log-level", "", "log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	flagSet.String("lock-path", "", "path of the advisory process lock file")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.Replace(name, "-", "_", -1))
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("sweep_spec", defaultSweepSpec)
	viper.SetDefault("auth.session_hours", defaultSessionHours)
	viper.SetDefault("agent.url", defaultAgentURL)
	viper.SetDefault("roomservice.empty_timeout", defaultEmptyTimeout)
	viper.SetDefault("roomservice.max_participants", defaultMaxParticipants)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("LSMEET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	return &cfg, nil
}
