package config

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Root                   string
	LogLevel               string
	MaxWorkers             int
	Encoder                string
	DisabledEncoders       []string
	Watch                  bool
	MetadataStabilityDelay time.Duration
	MD5ChunkSize           int
}

// Load reads configuration from environment variables. An empty AVIFSORT_ROOT
// resolves to the process working directory here, once, so nothing downstream
// depends on it.
func Load() (*Config, error) {
	cfg := &Config{
		Root:                   getEnv("AVIFSORT_ROOT", ""),
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", "info")),
		MaxWorkers:             getEnvInt("MAX_WORKERS", runtime.NumCPU()),
		Encoder:                strings.ToLower(getEnv("AVIF_ENCODER", "avif")),
		DisabledEncoders:       getEnvList("AVIF_DISABLE"),
		Watch:                  getEnvBool("AVIFSORT_WATCH", false),
		MetadataStabilityDelay: time.Duration(getEnvInt("METADATA_STABILITY_DELAY", 1)) * time.Second,
		MD5ChunkSize:           getEnvInt("MD5_CHUNK_SIZE", 4*1024*1024),
	}
	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cfg.Root = wd
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	return cfg, nil
}

func (c *Config) Debug() bool { return c.LogLevel == "debug" }

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid integer value for %s: %s, using default: %d", key, v, def)
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid boolean value for %s: %s, using default: %t", key, v, def)
		return def
	}
	return b
}

// getEnvList splits a comma-separated value, lowercasing and dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
