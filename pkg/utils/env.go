package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	gonanoid "github.com/matoous/go-nanoid"
	"github.com/spf13/cast"
)

const randAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// LoadEnv loads .env, or .env.<env> when env is set. Variables already present
// in the process environment win.
func LoadEnv(env string) error {
	filename := ".env"
	if env != "" {
		filename = fmt.Sprintf(".env.%s", env)
	}
	if _, err := os.Stat(filename); err != nil {
		return err
	}
	return godotenv.Load(filename)
}

// GetEnv returns the trimmed value of key.
func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func GetBoolEnv(key string) bool {
	return cast.ToBool(GetEnv(key))
}

func GetIntEnv(key string) int64 {
	return cast.ToInt64(GetEnv(key))
}

func GetFloatEnv(key string) float64 {
	return cast.ToFloat64(GetEnv(key))
}

// GetDurationEnv accepts Go duration strings ("90s") and bare integers as seconds.
func GetDurationEnv(key string) time.Duration {
	v := GetEnv(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return time.Duration(cast.ToInt64(v)) * time.Second
}

// GetListEnv splits a comma separated value, dropping empty items.
func GetListEnv(key string) []string {
	v := GetEnv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// RandText returns n random alphanumeric characters.
func RandText(n int) string {
	s, err := gonanoid.Generate(randAlphabet, n)
	if err != nil {
		return strings.Repeat("x", n)
	}
	return s
}
