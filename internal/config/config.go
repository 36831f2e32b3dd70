// Пакет config — загрузка и валидация конфигурации File Manager
// из переменных окружения и (опционально) .env файла.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// DefaultAcceptedTypes — список допустимых типов по умолчанию (зона загрузки веб-интерфейса).
const DefaultAcceptedTypes = "image/*,application/pdf,.doc,.docx,.xls,.xlsx,.ppt,.pptx"

// Config содержит все параметры конфигурации File Manager.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Максимальный размер загружаемого файла в байтах (0 — без ограничения)
	MaxUploadSize int64
	// Список допустимых типов: MIME, маски вида image/* и расширения .ext
	AcceptedTypes []string

	// Интервал одного шага симуляции передачи
	StepInterval time.Duration
	// Базовая скорость передачи, байт/с
	BaseSpeed float64
	// Относительный разброс скорости (0.15 = ±15%)
	SpeedJitter float64
	// Число частей, на которые делится файл
	ChunkCount int
	// Минимальный размер части в байтах
	MinChunkSize int64
	// Вероятность сбоя на одном шаге (0 — сбоев нет)
	FailureRate float64
	// Задержка удаления завершённой записи из очереди
	CompletionGrace time.Duration
	// Имитация задержки операций хранилищ
	StoreLatency time.Duration

	// Размер и TTL кэша результатов поиска
	SearchCacheSize int
	SearchCacheTTL  time.Duration
	// Время жизни неактивной поисковой сессии
	SearchSessionTTL time.Duration
	// Сколько хранить сведения о завершённых пакетах загрузки
	BatchRetention time.Duration

	// Базовый URL генератора миниатюр
	ThumbnailBaseURL string
	// Разрешённые CORS origins
	CORSOrigins []string
	// Путь к JSON-файлу с начальным набором записей (опционально)
	SeedFile string
	// Память под multipart-форму, остальное уходит во временные файлы
	MultipartMemory int64
	// Предельный размер тела запроса на загрузку (0 — без ограничения)
	MaxRequestBody int64

	// Интервал пересчёта показателей хранилищ для Prometheus
	StatsInterval time.Duration
	// Интервал пингов в SSE-потоке событий
	SSEKeepAlive time.Duration

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
//
// Перед чтением переменных подгружается .env файл (FM_ENV_FILE, по умолчанию ".env").
// Уже заданные переменные окружения файлом не перезаписываются.
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvDefault("FM_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// FM_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("FM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FM_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("FM_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// FM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FM_LOG_LEVEL: %w", err)
	}

	// FM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// FM_MAX_UPLOAD_SIZE — максимальный размер файла (по умолчанию 50 MiB)
	cfg.MaxUploadSize, err = getEnvInt64("FM_MAX_UPLOAD_SIZE", 50*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("FM_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize < 0 {
		return nil, fmt.Errorf("FM_MAX_UPLOAD_SIZE: значение не может быть отрицательным")
	}

	// FM_ACCEPTED_TYPES — список через запятую; "*" снимает ограничение
	accepted := getEnvDefault("FM_ACCEPTED_TYPES", DefaultAcceptedTypes)
	if strings.TrimSpace(accepted) != "*" {
		cfg.AcceptedTypes = splitList(accepted)
	}

	cfg.StepInterval, err = getEnvDuration("FM_SIM_STEP_INTERVAL", 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("FM_SIM_STEP_INTERVAL: %w", err)
	}
	if cfg.StepInterval < 0 {
		return nil, fmt.Errorf("FM_SIM_STEP_INTERVAL: значение не может быть отрицательным")
	}

	cfg.BaseSpeed, err = getEnvFloat("FM_SIM_BASE_SPEED", 2*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("FM_SIM_BASE_SPEED: %w", err)
	}
	if cfg.BaseSpeed <= 0 {
		return nil, fmt.Errorf("FM_SIM_BASE_SPEED: значение должно быть положительным")
	}

	cfg.SpeedJitter, err = getEnvFloat("FM_SIM_JITTER", 0.15)
	if err != nil {
		return nil, fmt.Errorf("FM_SIM_JITTER: %w", err)
	}
	if cfg.SpeedJitter < 0 || cfg.SpeedJitter >= 1 {
		return nil, fmt.Errorf("FM_SIM_JITTER: значение %.3f вне диапазона [0, 1)", cfg.SpeedJitter)
	}

	cfg.ChunkCount, err = getEnvInt("FM_SIM_CHUNKS", 20)
	if err != nil {
		return nil, fmt.Errorf("FM_SIM_CHUNKS: %w", err)
	}
	if cfg.ChunkCount <= 0 {
		return nil, fmt.Errorf("FM_SIM_CHUNKS: значение должно быть положительным")
	}

	cfg.MinChunkSize, err = getEnvInt64("FM_SIM_MIN_CHUNK", 100*1024)
	if err != nil {
		return nil, fmt.Errorf("FM_SIM_MIN_CHUNK: %w", err)
	}
	if cfg.MinChunkSize <= 0 {
		return nil, fmt.Errorf("FM_SIM_MIN_CHUNK: значение должно быть положительным")
	}

	cfg.FailureRate, err = getEnvFloat("FM_SIM_FAILURE_RATE", 0)
	if err != nil {
		return nil, fmt.Errorf("FM_SIM_FAILURE_RATE: %w", err)
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return nil, fmt.Errorf("FM_SIM_FAILURE_RATE: значение %.3f вне диапазона [0, 1]", cfg.FailureRate)
	}

	cfg.CompletionGrace, err = getEnvDuration("FM_COMPLETION_GRACE", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_COMPLETION_GRACE: %w", err)
	}

	cfg.StoreLatency, err = getEnvDuration("FM_STORE_LATENCY", 0)
	if err != nil {
		return nil, fmt.Errorf("FM_STORE_LATENCY: %w", err)
	}

	cfg.SearchCacheSize, err = getEnvInt("FM_SEARCH_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("FM_SEARCH_CACHE_SIZE: %w", err)
	}
	if cfg.SearchCacheSize <= 0 {
		return nil, fmt.Errorf("FM_SEARCH_CACHE_SIZE: значение должно быть положительным")
	}

	cfg.SearchCacheTTL, err = getEnvDuration("FM_SEARCH_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_SEARCH_CACHE_TTL: %w", err)
	}

	cfg.SearchSessionTTL, err = getEnvDuration("FM_SEARCH_SESSION_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FM_SEARCH_SESSION_TTL: %w", err)
	}

	cfg.BatchRetention, err = getEnvDuration("FM_BATCH_RETENTION", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FM_BATCH_RETENTION: %w", err)
	}

	cfg.ThumbnailBaseURL = getEnvDefault("FM_THUMBNAIL_BASE_URL", "https://picsum.photos/200/200")
	cfg.CORSOrigins = splitList(getEnvDefault("FM_CORS_ORIGINS", "http://localhost:5173"))
	cfg.SeedFile = getEnvDefault("FM_SEED_FILE", "")

	cfg.MultipartMemory, err = getEnvInt64("FM_MULTIPART_MEMORY", 32*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("FM_MULTIPART_MEMORY: %w", err)
	}

	// FM_MAX_REQUEST_BODY — лимит тела POST /api/v1/uploads (по умолчанию 512 MiB)
	cfg.MaxRequestBody, err = getEnvInt64("FM_MAX_REQUEST_BODY", 512*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("FM_MAX_REQUEST_BODY: %w", err)
	}
	if cfg.MaxRequestBody < 0 {
		return nil, fmt.Errorf("FM_MAX_REQUEST_BODY: значение не может быть отрицательным")
	}

	cfg.StatsInterval, err = getEnvDuration("FM_STATS_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_STATS_INTERVAL: %w", err)
	}
	if cfg.StatsInterval <= 0 {
		return nil, fmt.Errorf("FM_STATS_INTERVAL: значение должно быть положительным")
	}

	// FM_SSE_KEEPALIVE — интервал пингов SSE
	cfg.SSEKeepAlive, err = getEnvDuration("FM_SSE_KEEPALIVE", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_SSE_KEEPALIVE: %w", err)
	}

	// FM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown HTTP-сервера (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// loadEnvFile подгружает переменные из .env файла. Отсутствие файла ошибкой не считается.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("FM_ENV_FILE: чтение %q: %w", path, err)
	}
	return nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvFloat возвращает float64 значение переменной окружения или значение по умолчанию.
func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 200ms, 2s, 10m)", val)
	}
	return d, nil
}

// splitList разбивает строку по запятым, отбрасывая пустые элементы.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
