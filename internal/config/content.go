package config

import (
	simpleconfig "github.com/tendant/simple-content/pkg/simplecontent/config"
)

// LoadSimpleContentConfig builds the content service configuration used to
// fetch remote reads and publish trimmed outputs.
func LoadSimpleContentConfig() (*simpleconfig.ServerConfig, error) {
	backend := Getenv("DEFAULT_STORAGE_BACKEND", "s3")
	opts := []simpleconfig.Option{
		simpleconfig.WithDatabase(Getenv("DATABASE_TYPE", "postgres"), Getenv("DATABASE_URL", "")),
		simpleconfig.WithDatabaseSchema(Getenv("DATABASE_SCHEMA", "content")),
		simpleconfig.WithDefaultStorage(backend),
	}

	switch backend {
	case "s3":
		opts = append(opts, simpleconfig.WithS3StorageFull(
			"s3",
			Getenv("AWS_S3_BUCKET", "sequencing-reads"),
			Getenv("AWS_S3_REGION", "us-east-1"),
			Getenv("AWS_ACCESS_KEY_ID", ""),
			Getenv("AWS_SECRET_ACCESS_KEY", ""),
			Getenv("AWS_S3_ENDPOINT", ""),
			GetenvBool("AWS_S3_USE_SSL", false),
			GetenvBool("AWS_S3_USE_PATH_STYLE", true),
		))
	case "memory":
		opts = append(opts, simpleconfig.WithMemoryStorage("memory"))
	}

	opts = append(opts,
		simpleconfig.WithEventLogging(false),
		simpleconfig.WithStorageDelegatedURLs(),
	)
	return simpleconfig.Load(opts...)
}
