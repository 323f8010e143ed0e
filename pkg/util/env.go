package util

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// LoadEnv loads .env.<env> then .env from the working directory. Variables
// already present in the process environment win.
func LoadEnv(env string) error {
	files := make([]string, 0, 2)
	if env != "" {
		if _, err := os.Stat(".env." + env); err == nil {
			files = append(files, ".env."+env)
		}
	}
	if _, err := os.Stat(".env"); err == nil {
		files = append(files, ".env")
	}
	if len(files) == 0 {
		return fmt.Errorf("no env file found for %q", env)
	}
	return godotenv.Load(files...)
}

func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func GetEnvOr(key, def string) string {
	if v := GetEnv(key); v != "" {
		return v
	}
	return def
}

func GetIntEnv(key string) int64 {
	return cast.ToInt64(GetEnv(key))
}

func GetIntEnvOr(key string, def int64) int64 {
	v := GetEnv(key)
	if v == "" {
		return def
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return def
	}
	return n
}

func GetBoolEnv(key string) bool {
	return cast.ToBool(GetEnv(key))
}

func GetBoolEnvOr(key string, def bool) bool {
	v := GetEnv(key)
	if v == "" {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// GetDurationEnvOr accepts Go duration strings ("30s") or bare integers,
// which cast interprets as nanoseconds.
func GetDurationEnvOr(key string, def time.Duration) time.Duration {
	v := GetEnv(key)
	if v == "" {
		return def
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return def
	}
	return d
}

func GetStringSliceEnv(key string) []string {
	v := GetEnv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
