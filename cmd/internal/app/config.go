package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	AuthBaseURL string
	LiveBaseURL string

	// StorePath is the sqlite file backing the durable record store.
	StorePath string

	LogLevel  string
	LogPretty bool

	// OpsAddr is the local diagnostics listener (/healthz, /metrics, /sessionz).
	// Empty disables it.
	OpsAddr string

	HTTPTimeout time.Duration

	StreamDialTimeout time.Duration
	StreamMaxRedials  int
	StreamRedialBase  time.Duration
	StreamRedialCap   time.Duration

	// Identified sign-in; all three empty means stay anonymous.
	Login    string
	Code     string
	Password string

	// QuizKey starts a new session for that quiz (teacher flow).
	// LiveKey joins an existing session (pupil flow).
	// Exactly one should be set; QuizKey wins when both are.
	QuizKey string
	LiveKey string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		AuthBaseURL: EnvString("QUIZLIVE_AUTH_URL", "http://127.0.0.1:8080"),
		LiveBaseURL: EnvString("QUIZLIVE_LIVE_URL", "http://127.0.0.1:8081"),

		StorePath: EnvString("QUIZLIVE_STORE_PATH", "quizlive.db"),

		LogLevel:  EnvString("QUIZLIVE_LOG_LEVEL", "info"),
		LogPretty: EnvBool("QUIZLIVE_LOG_PRETTY", false),

		OpsAddr: EnvString("QUIZLIVE_OPS_ADDR", "127.0.0.1:6161"),

		HTTPTimeout: EnvDuration("QUIZLIVE_HTTP_TIMEOUT", 10*time.Second),

		StreamDialTimeout: EnvDuration("QUIZLIVE_STREAM_DIAL_TIMEOUT", 10*time.Second),
		StreamMaxRedials:  EnvInt("QUIZLIVE_STREAM_MAX_REDIALS", 6),
		StreamRedialBase:  EnvDuration("QUIZLIVE_STREAM_REDIAL_BASE", 500*time.Millisecond),
		StreamRedialCap:   EnvDuration("QUIZLIVE_STREAM_REDIAL_CAP", 15*time.Second),

		Login:    EnvString("QUIZLIVE_LOGIN", ""),
		Code:     EnvString("QUIZLIVE_CODE", ""),
		Password: EnvString("QUIZLIVE_PASSWORD", ""),

		QuizKey: EnvString("QUIZLIVE_QUIZ_KEY", ""),
		LiveKey: EnvString("QUIZLIVE_LIVE_KEY", ""),
	}
}
