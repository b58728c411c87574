package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix      = "vcenter"
	envConfigPath  = "VCENTER_CONFIG_PATH"
	envVCAPService = "VCAP_SERVICES"

	defaultPort       = 443
	defaultListenAddr = ":8080"
	defaultLogLevel   = "info"
)

// AuthMode determines how incoming MCP requests are authenticated.
type AuthMode string

const (
	// AuthModeDevAllowAny accepts any bearer token and is intended for local development only.
	AuthModeDevAllowAny AuthMode = "DEV_ALLOW_ANY"
	// AuthModeBearerRequired requires a bearer token matching the configured secret.
	AuthModeBearerRequired AuthMode = "BEARER_REQUIRED"
)

var validAuthModes = map[AuthMode]struct{}{
	AuthModeDevAllowAny:    {},
	AuthModeBearerRequired: {},
}

// Settings captures the runtime configuration of the gateway.
type Settings struct {
	Host           string
	Port           int
	Username       string
	Password       string
	Insecure       bool
	AuthMode       AuthMode
	BearerToken    string
	LogLevel       string
	LogSinkEnabled bool
	ListenAddr     string
}

// BaseURL returns the https endpoint of the configured vCenter.
func (s *Settings) BaseURL() string {
	if s.Port != 0 && s.Port != defaultPort {
		return fmt.Sprintf("https://%s:%d", s.Host, s.Port)
	}
	return "https://" + s.Host
}

// envSettings binds VCENTER_* variables. Pointer fields distinguish an unset
// variable from an explicit zero value.
type envSettings struct {
	Host        *string `envconfig:"HOST"`
	Port        *int    `envconfig:"PORT"`
	Username    *string `envconfig:"USERNAME"`
	Password    *string `envconfig:"PASSWORD"`
	Insecure    *bool   `envconfig:"INSECURE"`
	AuthMode    *string `envconfig:"AUTH_MODE"`
	BearerToken *string `envconfig:"BEARER_TOKEN"`
	LogLevel    *string `envconfig:"LOG_LEVEL"`
	LogSink     *bool   `envconfig:"LOG_SINK"`
	ListenAddr  *string `envconfig:"LISTEN_ADDR"`
}

// fileSettings is the optional YAML config file shape.
type fileSettings struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Insecure    *bool  `yaml:"insecure"`
	AuthMode    string `yaml:"auth_mode"`
	BearerToken string `yaml:"bearer_token"`
	LogLevel    string `yaml:"log_level"`
	LogSink     *bool  `yaml:"log_sink"`
	ListenAddr  string `yaml:"listen_addr"`
}

// Loader loads runtime configuration from the environment, an optional Cloud
// Foundry service binding, and an optional YAML file. Precedence is
// environment over service binding over file over defaults.
type Loader struct {
	envLookup func(string) (string, bool)
	readFile  func(string) ([]byte, error)
}

// NewLoader creates a Loader that reads from the real environment.
func NewLoader() *Loader {
	return &Loader{
		envLookup: os.LookupEnv,
		readFile:  os.ReadFile,
	}
}

// Load assembles and validates the settings.
func (l *Loader) Load() (*Settings, error) {
	if l.envLookup == nil {
		l.envLookup = os.LookupEnv
	}
	if l.readFile == nil {
		l.readFile = os.ReadFile
	}

	settings := &Settings{
		Port:       defaultPort,
		AuthMode:   AuthModeDevAllowAny,
		LogLevel:   defaultLogLevel,
		ListenAddr: defaultListenAddr,
	}

	if err := l.applyFile(settings); err != nil {
		return nil, err
	}
	if err := l.applyServiceBinding(settings); err != nil {
		return nil, err
	}
	if err := l.applyEnv(settings); err != nil {
		return nil, err
	}

	if err := validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (l *Loader) applyFile(settings *Settings) error {
	path, ok := l.envLookup(envConfigPath)
	if !ok || path == "" {
		return nil
	}

	data, err := l.readFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var file fileSettings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if file.Host != "" {
		settings.Host = file.Host
	}
	if file.Port != 0 {
		settings.Port = file.Port
	}
	if file.Username != "" {
		settings.Username = file.Username
	}
	if file.Password != "" {
		settings.Password = file.Password
	}
	if file.Insecure != nil {
		settings.Insecure = *file.Insecure
	}
	if file.AuthMode != "" {
		settings.AuthMode = AuthMode(file.AuthMode)
	}
	if file.BearerToken != "" {
		settings.BearerToken = file.BearerToken
	}
	if file.LogLevel != "" {
		settings.LogLevel = file.LogLevel
	}
	if file.LogSink != nil {
		settings.LogSinkEnabled = *file.LogSink
	}
	if file.ListenAddr != "" {
		settings.ListenAddr = file.ListenAddr
	}
	return nil
}

// applyServiceBinding fills settings from a Cloud Foundry VCAP_SERVICES
// binding whose service instance name contains "vcenter". Values that still
// contain an unexpanded "${" placeholder count as unset.
func (l *Loader) applyServiceBinding(settings *Settings) error {
	raw, ok := l.envLookup(envVCAPService)
	if !ok || raw == "" {
		return nil
	}

	var services map[string][]struct {
		Name        string         `json:"name"`
		Credentials map[string]any `json:"credentials"`
	}
	if err := json.Unmarshal([]byte(raw), &services); err != nil {
		return fmt.Errorf("parse VCAP_SERVICES: %w", err)
	}

	for _, instances := range services {
		for _, instance := range instances {
			if !strings.Contains(strings.ToLower(instance.Name), "vcenter") {
				continue
			}
			applyCredentials(settings, instance.Credentials)
			return nil
		}
	}
	return nil
}

func applyCredentials(settings *Settings, creds map[string]any) {
	if v := credentialString(creds, "host", "hostname"); v != "" {
		settings.Host = v
	}
	if v := credentialString(creds, "port"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			settings.Port = port
		}
	}
	if v := credentialString(creds, "username", "user"); v != "" {
		settings.Username = v
	}
	if v := credentialString(creds, "password"); v != "" {
		settings.Password = v
	}
	if v := credentialString(creds, "insecure"); v != "" {
		if insecure, err := strconv.ParseBool(v); err == nil {
			settings.Insecure = insecure
		}
	}
}

func credentialString(creds map[string]any, keys ...string) string {
	for _, key := range keys {
		raw, ok := creds[key]
		if !ok {
			continue
		}
		var value string
		switch v := raw.(type) {
		case string:
			value = v
		case json.Number:
			value = v.String()
		case float64:
			value = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			value = strconv.FormatBool(v)
		default:
			continue
		}
		if value == "" || strings.Contains(value, "${") {
			continue
		}
		return value
	}
	return ""
}

func (l *Loader) applyEnv(settings *Settings) error {
	var env envSettings
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if env.Host != nil && *env.Host != "" {
		settings.Host = *env.Host
	}
	if env.Port != nil && *env.Port != 0 {
		settings.Port = *env.Port
	}
	if env.Username != nil && *env.Username != "" {
		settings.Username = *env.Username
	}
	if env.Password != nil && *env.Password != "" {
		settings.Password = *env.Password
	}
	if env.Insecure != nil {
		settings.Insecure = *env.Insecure
	}
	if env.AuthMode != nil && *env.AuthMode != "" {
		settings.AuthMode = AuthMode(*env.AuthMode)
	}
	if env.BearerToken != nil && *env.BearerToken != "" {
		settings.BearerToken = *env.BearerToken
	}
	if env.LogLevel != nil && *env.LogLevel != "" {
		settings.LogLevel = *env.LogLevel
	}
	if env.LogSink != nil {
		settings.LogSinkEnabled = *env.LogSink
	}
	if env.ListenAddr != nil && *env.ListenAddr != "" {
		settings.ListenAddr = *env.ListenAddr
	}
	return nil
}

func validate(settings *Settings) error {
	var missing []string
	if settings.Host == "" {
		missing = append(missing, "VCENTER_HOST")
	}
	if settings.Username == "" {
		missing = append(missing, "VCENTER_USERNAME")
	}
	if settings.Password == "" {
		missing = append(missing, "VCENTER_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if _, valid := validAuthModes[settings.AuthMode]; !valid {
		return fmt.Errorf("invalid VCENTER_AUTH_MODE %q", settings.AuthMode)
	}
	if settings.AuthMode == AuthModeBearerRequired && settings.BearerToken == "" {
		return errors.New("VCENTER_BEARER_TOKEN must be set when VCENTER_AUTH_MODE is BEARER_REQUIRED")
	}
	if settings.Port <= 0 || settings.Port > 65535 {
		return fmt.Errorf("invalid VCENTER_PORT %d", settings.Port)
	}
	return nil
}
