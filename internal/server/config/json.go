package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/propertyhub/docgate/internal/flagx"
	"github.com/propertyhub/docgate/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "168h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr            string         `json:"endpoint_addr"`
	DatabaseDSN             string         `json:"database_dsn"`
	Production              bool           `json:"production"`
	SessionValidityDuration timex.Duration `json:"session_validity_duration"`
	UploadsRoot             string         `json:"uploads_root"`
	MaxUploadBytes          int64          `json:"max_upload_bytes"`
	S3AccessKey             string         `json:"s3_access_key"`
	S3SecretKey             string         `json:"s3_secret_key"`
	S3Bucket                string         `json:"s3_bucket"`
	S3Region                string         `json:"s3_region"`
	S3BaseEndpoint          string         `json:"s3_base_endpoint"`
	RemoteAttempts          int            `json:"remote_attempts"`
	RemoteTimeout           timex.Duration `json:"remote_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics. The caller is expected
// to merge these values with defaults and command-line flags as part of the
// full configuration process.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.Production = c.Production
	config.SessionValidityDuration = time.Duration(c.SessionValidityDuration.Duration)
	config.UploadsRoot = c.UploadsRoot
	config.MaxUploadBytes = c.MaxUploadBytes
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.RemoteAttempts = c.RemoteAttempts
	config.RemoteTimeout = time.Duration(c.RemoteTimeout.Duration)
}
