package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Server struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MetricsDisabled bool          `yaml:"metrics_disabled" env:"SERVER_METRICS_DISABLED"`
}

// OpenAI holds provider credentials. The key is optional at startup; relays
// fail at call time without it.
type OpenAI struct {
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `yaml:"open_ai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com"`
}

type Chat struct {
	Model            string   `yaml:"model" env:"CHAT_MODEL" env-default:"gpt-4-turbo"`
	AllowedModels    []string `yaml:"allowed_models" env:"CHAT_ALLOWED_MODELS" env-separator:","`
	PromptMode       string   `yaml:"prompt_mode" env:"CHAT_PROMPT_MODE" env-default:"adaptive"`
	DefaultLevel     string   `yaml:"default_level" env:"CHAT_DEFAULT_LEVEL" env-default:"intermediate"`
	Temperature      float32  `yaml:"temperature" env:"CHAT_TEMPERATURE" env-default:"0.7"`
	MaxTokens        int      `yaml:"max_tokens" env:"CHAT_MAX_TOKENS" env-default:"150"`
	FrequencyPenalty float32  `yaml:"frequency_penalty" env:"CHAT_FREQUENCY_PENALTY" env-default:"0.5"`
	PresencePenalty  float32  `yaml:"presence_penalty" env:"CHAT_PRESENCE_PENALTY" env-default:"0.5"`
	TopP             float32  `yaml:"top_p" env:"CHAT_TOP_P" env-default:"1"`
	MaxContextTokens int      `yaml:"max_context_tokens" env:"CHAT_MAX_CONTEXT_TOKENS" env-default:"3500"`
}

type Speech struct {
	Model         string `yaml:"model" env:"SPEECH_MODEL" env-default:"tts-1-hd"`
	DefaultVoice  string `yaml:"default_voice" env:"SPEECH_DEFAULT_VOICE" env-default:"nova"`
	MaxTextLength int    `yaml:"max_text_length" env:"SPEECH_MAX_TEXT_LENGTH" env-default:"4096"`
}

type Transcription struct {
	Model             string  `yaml:"model" env:"TRANSCRIPTION_MODEL" env-default:"whisper-1"`
	DefaultLanguage   string  `yaml:"default_language" env:"TRANSCRIPTION_DEFAULT_LANGUAGE" env-default:"en"`
	DefaultPrompt     string  `yaml:"default_prompt" env:"TRANSCRIPTION_DEFAULT_PROMPT" env-default:"This is an English language learning session. Please transcribe clearly and provide pronunciation feedback."`
	DefaultConfidence float64 `yaml:"default_confidence" env:"TRANSCRIPTION_DEFAULT_CONFIDENCE" env-default:"0.8"`
	MaxUploadBytes    int64   `yaml:"max_upload_bytes" env:"TRANSCRIPTION_MAX_UPLOAD_BYTES" env-default:"26214400"`
}

type Session struct {
	HistoryLimit int    `yaml:"history_limit" env:"SESSION_HISTORY_LIMIT" env-default:"10"`
	Language     string `yaml:"language" env:"SESSION_LANGUAGE" env-default:"en"`
}

type Storage struct {
	Driver        string        `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	RedisEndpoint string        `yaml:"redis_endpoint" env:"REDIS_ENDPOINT" env-default:"localhost:6379"`
	RedisTTL      time.Duration `yaml:"redis_ttl" env:"REDIS_TTL" env-default:"720h"`
	SQLitePath    string        `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"hablaya.db"`
}

type Telegram struct {
	TelegramAPIToken  string  `env:"TELEGRAM_APITOKEN"`
	AllowedTelegramID []int64 `yaml:"allowed_telegram_id" env:"ALLOWED_TELEGRAM_ID" env-separator:","`
	IsNotPublic       bool    `yaml:"is_not_public" env:"TELEGRAM_IS_NOT_PUBLIC" env-default:"false"`
}

type Client struct {
	ServerURL     string        `yaml:"server_url" env:"CLIENT_SERVER_URL" env-default:"http://localhost:8080"`
	Timeout       time.Duration `yaml:"timeout" env:"CLIENT_TIMEOUT" env-default:"120s"`
	PlayerCommand string        `yaml:"player_command" env:"CLIENT_PLAYER_COMMAND"`
	AudioDir      string        `yaml:"audio_dir" env:"CLIENT_AUDIO_DIR"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

type Config struct {
	Server        Server        `yaml:"server"`
	OpenAI        OpenAI        `yaml:"openai"`
	Chat          Chat          `yaml:"chat"`
	Speech        Speech        `yaml:"speech"`
	Transcription Transcription `yaml:"transcription"`
	Session       Session       `yaml:"session"`
	Storage       Storage       `yaml:"storage"`
	Telegram      Telegram      `yaml:"telegram"`
	Client        Client        `yaml:"client"`
	Log           Log           `yaml:"log"`
}

// LoadConfig reads cfgPath (when set) and then overlays the environment.
func LoadConfig(cfgPath string) (*Config, error) {
	var cfg Config
	if cfgPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
		return nil, err
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
