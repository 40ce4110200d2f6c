package internal

import (
	"fmt"
	"time"
)

type Config struct {
	APIBaseURL  string `env:"API_BASE_URL,required=true"`
	PushURL     string `env:"PUSH_URL"`
	LocalUserID string `env:"LOCAL_USER_ID,required=true"`
	LogLevel    string `env:"LOG_LEVEL,required=true"`

	MessagePageSize      int           `env:"MESSAGE_PAGE_SIZE,default=50"`
	ConversationPageSize int           `env:"CONVERSATION_PAGE_SIZE,default=20"`
	TypingQuietPeriod    time.Duration `env:"TYPING_QUIET_PERIOD,default=2s"`
	HTTPTimeout          time.Duration `env:"HTTP_TIMEOUT,default=10s"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	CachedMessages *int   `env:"CACHED_MESSAGES"`
	SearchPageSize int    `env:"SEARCH_PAGE_SIZE,default=10"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
	DebugPort       int    `env:"DEBUG_PORT,default=8081"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
