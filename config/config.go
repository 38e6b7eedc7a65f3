package config

import (
	"fmt"
	"os"
)

type (
	APP struct {
		Name string
		Host string
		Port string
		Env  string
	}
	S3 struct {
		Region          string
		Endpoint        string
		AccessKeyID     string
		SecretAccessKey string
		Bucket          string
	}
	Auth struct {
		PublicKeyFile string
	}

	Config struct {
		App  APP
		S3   S3
		Auth Auth
	}
)

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func Load() Config {
	app := APP{
		Name: getEnv("SERVICE_NAME", "filevault"),
		Host: getEnv("SERVICE_HOST", ""),
		Port: getEnv("SERVICE_PORT", "5000"),
		Env:  getEnv("SERVICE_ENV", ""),
	}
	s3 := S3{
		Region:          getEnv("S3_REGION", ""),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		Bucket:          getEnv("S3_BUCKET_UPLOADS", ""),
	}
	auth := Auth{
		PublicKeyFile: getEnv("AUTH_PUBLIC_KEY_FILE", ""),
	}

	return Config{
		App:  app,
		S3:   s3,
		Auth: auth,
	}
}

func (c Config) ValidateS3() error {
	if c.S3.Region == "" || c.S3.Bucket == "" {
		return fmt.Errorf("incomplete S3 config: region and bucket are required")
	}
	return nil
}
