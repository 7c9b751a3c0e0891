package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
	// PublicURL is the externally reachable base URL the call provider uses
	// for webhook callbacks, e.g. https://screen.example.com.
	PublicURL string `yaml:"public_url"`
}

type Config struct {
	ServiceName string            `yaml:"service_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	RecordStore RecordStoreConfig `yaml:"record_store"`
	Interview   InterviewConfig   `yaml:"interview"`
	Question    QuestionConfig    `yaml:"question"`
	Telephony   TelephonyConfig   `yaml:"telephony"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type RecordStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type InterviewConfig struct {
	// QuestionLimit is the number of question/answer cycles per interview.
	QuestionLimit    int    `yaml:"question_limit"`
	GreetingTemplate string `yaml:"greeting_template"`
	ClosingUtterance string `yaml:"closing_utterance"`
	ApologyUtterance string `yaml:"apology_utterance"`
}

type QuestionConfig struct {
	Mode        string  `yaml:"mode"` // mock, ollama, exec
	Endpoint    string  `yaml:"endpoint"`
	Command     string  `yaml:"command"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutMS   int     `yaml:"timeout_ms"`
}

type TelephonyConfig struct {
	Mode       string `yaml:"mode"` // mock, rest
	Endpoint   string `yaml:"endpoint"`
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

func Default() Config {
	return Config{
		ServiceName: "phonescreend",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:      "0.0.0.0",
			Port:      8080,
			PublicURL: "http://localhost:8080",
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		RecordStore: RecordStoreConfig{
			Path:          "./data/interviews.db",
			RetentionDays: 0,
		},
		Interview: InterviewConfig{
			QuestionLimit:    5,
			GreetingTemplate: "Hello! I'm your automated interviewer. Today we'll be talking about %s. Let's get started.",
			ClosingUtterance: "That was the last question. Thank you for your time, goodbye!",
			ApologyUtterance: "I'm sorry, something went wrong on our end. We'll be in touch. Goodbye.",
		},
		Question: QuestionConfig{
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:latest",
			MaxTokens:   128,
			Temperature: 0.7,
			TimeoutMS:   15000,
		},
		Telephony: TelephonyConfig{
			Mode:      "mock",
			Endpoint:  "https://api.twilio.com",
			TimeoutMS: 10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "PHONESCREEN_SERVICE_NAME")
	overrideString(&cfg.Environment, "PHONESCREEN_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "PHONESCREEN_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "PHONESCREEN_HTTP_PORT")
	overrideString(&cfg.HTTP.PublicURL, "PHONESCREEN_HTTP_PUBLIC_URL")
	overrideString(&cfg.Telemetry.LogLevel, "PHONESCREEN_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "PHONESCREEN_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "PHONESCREEN_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "PHONESCREEN_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "PHONESCREEN_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "PHONESCREEN_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "PHONESCREEN_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "PHONESCREEN_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "PHONESCREEN_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "PHONESCREEN_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "PHONESCREEN_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "PHONESCREEN_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.RecordStore.Path, "PHONESCREEN_RECORD_STORE_PATH")
	overrideInt(&cfg.RecordStore.RetentionDays, "PHONESCREEN_RECORD_STORE_RETENTION_DAYS")
	overrideBool(&cfg.RecordStore.VacuumOnStart, "PHONESCREEN_RECORD_STORE_VACUUM_ON_START")
	overrideInt(&cfg.Interview.QuestionLimit, "PHONESCREEN_INTERVIEW_QUESTION_LIMIT")
	overrideString(&cfg.Interview.GreetingTemplate, "PHONESCREEN_INTERVIEW_GREETING_TEMPLATE")
	overrideString(&cfg.Interview.ClosingUtterance, "PHONESCREEN_INTERVIEW_CLOSING_UTTERANCE")
	overrideString(&cfg.Interview.ApologyUtterance, "PHONESCREEN_INTERVIEW_APOLOGY_UTTERANCE")
	overrideString(&cfg.Question.Mode, "PHONESCREEN_QUESTION_MODE")
	overrideString(&cfg.Question.Endpoint, "PHONESCREEN_QUESTION_ENDPOINT")
	overrideString(&cfg.Question.Command, "PHONESCREEN_QUESTION_COMMAND")
	overrideString(&cfg.Question.Model, "PHONESCREEN_QUESTION_MODEL")
	overrideInt(&cfg.Question.MaxTokens, "PHONESCREEN_QUESTION_MAX_TOKENS")
	overrideFloat(&cfg.Question.Temperature, "PHONESCREEN_QUESTION_TEMPERATURE")
	overrideInt(&cfg.Question.TimeoutMS, "PHONESCREEN_QUESTION_TIMEOUT_MS")
	overrideString(&cfg.Telephony.Mode, "PHONESCREEN_TELEPHONY_MODE")
	overrideString(&cfg.Telephony.Endpoint, "PHONESCREEN_TELEPHONY_ENDPOINT")
	overrideString(&cfg.Telephony.AccountSID, "PHONESCREEN_TELEPHONY_ACCOUNT_SID")
	overrideString(&cfg.Telephony.AuthToken, "PHONESCREEN_TELEPHONY_AUTH_TOKEN")
	overrideString(&cfg.Telephony.FromNumber, "PHONESCREEN_TELEPHONY_FROM_NUMBER")
	overrideInt(&cfg.Telephony.TimeoutMS, "PHONESCREEN_TELEPHONY_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.PublicURL == "" {
		return errors.New("http.public_url must not be empty")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.RecordStore.Path == "" {
		return errors.New("record_store.path must not be empty")
	}
	if cfg.RecordStore.RetentionDays < 0 {
		return errors.New("record_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Interview.QuestionLimit <= 0 {
		return errors.New("interview.question_limit must be >= 1")
	}
	if !strings.Contains(cfg.Interview.GreetingTemplate, "%s") {
		return errors.New("interview.greeting_template must contain a %s placeholder for the topic")
	}
	switch cfg.Question.Mode {
	case "mock", "ollama", "exec":
	default:
		return errors.New("question.mode must be one of mock|ollama|exec")
	}
	if cfg.Question.Mode == "ollama" && cfg.Question.Endpoint == "" {
		return errors.New("question.endpoint must be set when mode=ollama")
	}
	if cfg.Question.Mode == "exec" && cfg.Question.Command == "" {
		return errors.New("question.command must be set when mode=exec")
	}
	if cfg.Question.MaxTokens < 0 {
		return errors.New("question.max_tokens must be >= 0")
	}
	if cfg.Question.TimeoutMS <= 0 {
		return errors.New("question.timeout_ms must be positive")
	}
	switch cfg.Telephony.Mode {
	case "mock", "rest":
	default:
		return errors.New("telephony.mode must be one of mock|rest")
	}
	if cfg.Telephony.Mode == "rest" {
		if cfg.Telephony.Endpoint == "" {
			return errors.New("telephony.endpoint must be set when mode=rest")
		}
		if cfg.Telephony.AccountSID == "" || cfg.Telephony.AuthToken == "" {
			return errors.New("telephony.account_sid and telephony.auth_token must be set when mode=rest")
		}
		if cfg.Telephony.FromNumber == "" {
			return errors.New("telephony.from_number must be set when mode=rest")
		}
	}
	if cfg.Telephony.TimeoutMS <= 0 {
		return errors.New("telephony.timeout_ms must be positive")
	}
	return nil
}
