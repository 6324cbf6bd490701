package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// AppState is the modifiable state of the application.
type AppState struct {
	Config *types.Config

	ConfigPath string
	EnvFile    string

	LogLevel string
	JSONLogs bool

	Logger log.Logger
}

func NewAppState() *AppState {
	return &AppState{}
}

// InitAppState checks if a logger and config are present. If not, it adds them to the AppState
func (a *AppState) InitAppState() {
	if a.Logger == nil {
		a.InitLogger()
	}
	if a.Config == nil {
		a.loadConfigFile()
	}
}

func (a *AppState) InitLogger() {
	var level zerolog.Level
	switch strings.ToLower(a.LogLevel) {
	case "debug":
		level = zerolog.DebugLevel
	case "error":
		level = zerolog.ErrorLevel
	case "warn":
		level = zerolog.WarnLevel
	default:
		level = zerolog.InfoLevel
	}

	opts := []log.Option{log.LevelOption(level)}
	if a.JSONLogs {
		opts = append(opts, log.OutputJSONOption())
	}
	a.Logger = log.NewLogger(os.Stdout, opts...)
}

// loadConfigFile loads the YAML config, expanding ${VAR} references from the environment and the optional env file.
func (a *AppState) loadConfigFile() {
	if a.Logger == nil {
		a.InitLogger()
	}

	if a.EnvFile != "" {
		if err := godotenv.Load(a.EnvFile); err != nil && !os.IsNotExist(err) {
			a.Logger.Error("Unable to load env file", "path", a.EnvFile, "error", err)
		}
	}

	cfg, err := ParseConfig(a.ConfigPath)
	if err != nil {
		a.Logger.Error("Unable to parse config file", "location", a.ConfigPath, "error", err)
		os.Exit(1)
	}
	a.Logger.Info("Successfully parsed config file", "location", a.ConfigPath)
	a.Config = cfg
}

// ParseConfig reads, expands and validates the config at path.
func ParseConfig(path string) (*types.Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return ParseConfigBytes(file)
}

func ParseConfigBytes(raw []byte) (*types.Config, error) {
	var cfg types.Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.Transfer = cfg.Transfer.WithDefaults()
	if cfg.ProcessorWorkerCount == 0 {
		cfg.ProcessorWorkerCount = 4
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
