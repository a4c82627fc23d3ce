package config

import (
	"flag"
	"os"
	"time"

	"github.com/propertyhub/docgate/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-prod       production mode (Secure session cookies)
//	-v int      session validity, hours
//	-r string   uploads root directory
//	-m int      upload ceiling, bytes
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-n int      remote upload attempts before local fallback
//	-w int      remote call timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-prod", "-v", "-r", "-m", "-u", "-p", "-b", "-g", "-e", "-n", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.BoolVar(&config.Production, "prod", config.Production, "production mode")

	sessionValidity := fs.Int("v", int(config.SessionValidityDuration.Hours()), "session validity (in hours)")

	fs.StringVar(&config.UploadsRoot, "r", config.UploadsRoot, "uploads root directory")
	fs.Int64Var(&config.MaxUploadBytes, "m", config.MaxUploadBytes, "upload ceiling (bytes)")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.IntVar(&config.RemoteAttempts, "n", config.RemoteAttempts, "remote upload attempts before fallback")

	remoteTimeout := fs.Int("w", int(config.RemoteTimeout.Seconds()), "remote call timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Hour
	config.RemoteTimeout = time.Duration(*remoteTimeout) * time.Second
}
