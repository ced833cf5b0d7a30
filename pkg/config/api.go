package config

import (
	"strings"
	"time"
)

const (
	defaultAssayFile     = "reframe_short_20170822.csv"
	defaultGVKFile       = "gvk_data_to_release.csv"
	defaultIntegrityFile = "integrity_annot_20171220.csv"
	defaultInformaFile   = "informa_annot_20171220.csv"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	LogLevel           string
	DatabaseURL        string
	SecretKey          string
	TokenTTL           time.Duration
	BcryptCost         int
	FrontendURL        string
	RecaptchaSecret    string
	RecaptchaVerifyURL string
	Data               DataConfig
	Wikidata           WikidataConfig
	Redis              RedisConfig
	S3                 S3Config
}

// DataConfig locates the read-only datasets.
type DataConfig struct {
	Dir           string
	AssayFile     string
	GVKFile       string
	IntegrityFile string
	InformaFile   string
	IDMapFile     string
	IDMapCacheTTL time.Duration
}

// WikidataConfig points at the knowledge base.
type WikidataConfig struct {
	EntityURL string
	SPARQLURL string
	RPS       float64
}

// RedisConfig is optional; an empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// S3Config is used when the data directory is an s3:// URL.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// IsS3 reports whether the data directory is an S3 location.
func (d DataConfig) IsS3() bool {
	return strings.HasPrefix(d.Dir, "s3://")
}

// LoadAPIConfig constructs an APIConfig from the config file and environment.
func LoadAPIConfig() APIConfig {
	src := NewSource()
	env := src.GetString("APP_ENV", "development")
	return APIConfig{
		Environment:        env,
		Addr:               src.GetString("API_ADDR", ":5000"),
		LogLevel:           src.GetString("LOG_LEVEL", "info"),
		DatabaseURL:        src.GetString("DATABASE_URL", "postgres://postgres:@localhost:5432/repurpos_db?sslmode=disable"),
		SecretKey:          src.GetString("SECRET_KEY", "my_precious"),
		TokenTTL:           src.GetHours("TOKEN_TTL_HOURS", 24),
		BcryptCost:         src.GetInt("BCRYPT_COST", defaultBcryptCost(env)),
		FrontendURL:        src.GetString("FRONTEND_URL", "http://localhost:4200"),
		RecaptchaSecret:    src.GetString("RECAPTCHA_SECRET_KEY", ""),
		RecaptchaVerifyURL: src.GetString("RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
		Data: DataConfig{
			Dir:           src.GetString("DATA_DIR", "./data"),
			AssayFile:     src.GetString("ASSAY_FILE", defaultAssayFile),
			GVKFile:       src.GetString("GVK_FILE", defaultGVKFile),
			IntegrityFile: src.GetString("INTEGRITY_FILE", defaultIntegrityFile),
			InformaFile:   src.GetString("INFORMA_FILE", defaultInformaFile),
			IDMapFile:     src.GetString("IDMAP_FILE", ""),
			IDMapCacheTTL: src.GetHours("IDMAP_CACHE_TTL_HOURS", 24),
		},
		Wikidata: loadWikidata(src),
		Redis: RedisConfig{
			Addr:     src.GetString("REDIS_ADDR", ""),
			Password: src.GetString("REDIS_PASSWORD", ""),
			DB:       src.GetInt("REDIS_DB", 0),
		},
		S3: S3Config{
			Region:          src.GetString("AWS_REGION", "us-east-1"),
			AccessKeyID:     src.GetString("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: src.GetString("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        src.GetString("S3_ENDPOINT", ""),
		},
	}
}

func loadWikidata(src *Source) WikidataConfig {
	return WikidataConfig{
		EntityURL: src.GetString("WIKIDATA_ENTITY_URL", "http://www.wikidata.org/entity"),
		SPARQLURL: src.GetString("WIKIDATA_SPARQL_URL", "https://query.wikidata.org/sparql"),
		RPS:       src.GetFloat("WIKIDATA_RPS", 5),
	}
}

// Development and test runs hash with the minimum cost to keep them fast.
func defaultBcryptCost(env string) int {
	switch strings.ToLower(env) {
	case "development", "testing", "test":
		return 4
	default:
		return 13
	}
}
