package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Kafka
	KafkaBrokers       []string
	KafkaGroupID       string
	KafkaReportTopic   string
	KafkaSpecimenTopic string
	KafkaBundleTopic   string
	KafkaRejectTopic   string

	// Vocabulary tables, file path or http(s) URL
	MappingSpecimenType     string
	MappingExtractionMethod string
	MappingContainerType    string
	MappingFetchTimeout     time.Duration

	// Identifier systems
	FHIRSystemsFile string

	MapperParallelism int

	// Sink
	Sink             string
	FHIRBaseURL      string
	FHIRTokenURL     string
	FHIRClientID     string
	FHIRClientSecret string
	FHIRScopes       []string
	FHIRTimeout      time.Duration

	// Redis record status
	StatusEnabled bool
	StatusTTL     time.Duration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Postgres rejection audit
	AuditEnabled     bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// Load reads the process configuration from the environment. A .env file in
// the working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		ServerPort:     getEnv("SERVER_PORT", "8090"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "patho-fhir"),
		KafkaReportTopic:   getEnv("KAFKA_REPORT_TOPIC", "patho-reports"),
		KafkaSpecimenTopic: getEnv("KAFKA_SPECIMEN_TOPIC", "patho-specimens"),
		KafkaBundleTopic:   getEnv("KAFKA_BUNDLE_TOPIC", "patho-fhir-bundles"),
		KafkaRejectTopic:   getEnv("KAFKA_REJECT_TOPIC", ""),

		MappingSpecimenType:     getEnv("MAPPING_SPECIMEN_TYPE", "mappings/specimen-type.csv"),
		MappingExtractionMethod: getEnv("MAPPING_EXTRACTION_METHOD", "mappings/extraction-method.csv"),
		MappingContainerType:    getEnv("MAPPING_CONTAINER_TYPE", "mappings/container-type.csv"),
		MappingFetchTimeout:     getDuration("MAPPING_FETCH_TIMEOUT", 30*time.Second),

		FHIRSystemsFile: getEnv("FHIR_SYSTEMS_FILE", ""),

		MapperParallelism: getIntEnv("MAPPER_PARALLELISM", 4),

		Sink:             getEnv("SINK", "kafka"),
		FHIRBaseURL:      getEnv("FHIR_BASE_URL", ""),
		FHIRTokenURL:     getEnv("FHIR_TOKEN_URL", ""),
		FHIRClientID:     getEnv("FHIR_CLIENT_ID", ""),
		FHIRClientSecret: getEnv("FHIR_CLIENT_SECRET", ""),
		FHIRScopes:       getStringSliceEnv("FHIR_SCOPES", nil),
		FHIRTimeout:      getDuration("FHIR_TIMEOUT", 30*time.Second),

		StatusEnabled: getBoolEnv("STATUS_ENABLED", false),
		StatusTTL:     getDuration("STATUS_TTL", 72*time.Hour),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		AuditEnabled:     getBoolEnv("AUDIT_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "patho"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "patho"),
		PostgresDB:       getEnv("POSTGRES_DB", "patho_fhir"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
