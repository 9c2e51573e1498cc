package storage

import (
	"fmt"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/config"
)

// NewStore creates an ObjectStore instance based on the configuration.
func NewStore(cfg *config.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Store(&S3Config{
			Endpoint:     cfg.Endpoint,
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
			Region:       cfg.Region,
			Bucket:       cfg.Bucket,
			UseSSL:       cfg.UseSSL,
			CustomDomain: cfg.CustomDomain,
			Location:     cfg.Location,
			Overwrite:    cfg.Overwrite,
		})
	case "local", "":
		return NewLocalStore(&LocalConfig{
			Root:          cfg.Root,
			BaseURL:       cfg.BaseURL,
			Location:      cfg.Location,
			SigningSecret: cfg.SigningSecret,
			Overwrite:     cfg.Overwrite,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
