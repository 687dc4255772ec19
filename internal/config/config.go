package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	BlobDriver   string // fs|minio
	BlobBasePath string // for fs

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	AuthSecret    string
	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string

	LogLevel string
}

// Load reads config from gatehall.yaml (if present next to the binary or in
// /etc/gatehall) with GATEHALL_* environment variables taking precedence.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("gatehall")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/gatehall")
	v.SetEnvPrefix("gatehall")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "")
	v.SetDefault("blob_driver", "fs")
	v.SetDefault("blob_base_path", "./data")
	v.SetDefault("minio_bucket", "gatehall")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("auth_secret", "dev-secret-change-me")
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_pass_hash", "")
	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	return Config{
		HTTPAddr:       v.GetString("http_addr"),
		DBDriver:       v.GetString("db_driver"),
		DBDSN:          v.GetString("db_dsn"),
		BlobDriver:     v.GetString("blob_driver"),
		BlobBasePath:   v.GetString("blob_base_path"),
		MinioEndpoint:  v.GetString("minio_endpoint"),
		MinioAccessKey: v.GetString("minio_access_key"),
		MinioSecretKey: v.GetString("minio_secret_key"),
		MinioBucket:    v.GetString("minio_bucket"),
		MinioUseSSL:    v.GetBool("minio_use_ssl"),
		AuthSecret:     v.GetString("auth_secret"),
		AdminUser:      v.GetString("admin_user"),
		AdminPassHash:  v.GetString("admin_pass_hash"),
		CORSOrigins:    splitCSV(v.GetString("cors_origins")),
		LogLevel:       v.GetString("log_level"),
	}, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
