package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/secretvault/internal/flagx"
)

var knownFlags = []string{"-k", "-d", "-r", "-s", "-m", "-p", "-o", "-b", "-e", "-i", "-t", "-w", "-g", "-video", "-x", "-l"}

// parseFlags populates selected Config fields from command-line flags.
//
//	-k string   local key/value driver (sqlite|redis|memory)
//	-d string   local key/value DSN
//	-r string   redis address
//	-s string   document store driver (mongo|postgres|memory)
//	-m string   mongo URI
//	-p string   postgres DSN
//	-o string   object store driver (s3|memory)
//	-b string   S3 bucket
//	-e string   S3 endpoint
//	-i string   identity driver (postgres|memory)
//	-t int      session lifetime in hours
//	-w int      concurrent uploads
//	-g string   gallery order (asc|desc)
//	-video      accept video files
//	-x string   metrics listen address
//	-l string   log level
//
// os.Args is filtered with flagx.FilterArgs first, so flags meant for other
// components are ignored. Parse errors panic.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.KVDriver, "k", cfg.KVDriver, "local key/value driver")
	fs.StringVar(&cfg.KVDSN, "d", cfg.KVDSN, "local key/value DSN")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address")
	fs.StringVar(&cfg.DocstoreDriver, "s", cfg.DocstoreDriver, "document store driver")
	fs.StringVar(&cfg.MongoURI, "m", cfg.MongoURI, "mongo URI")
	fs.StringVar(&cfg.PostgresDSN, "p", cfg.PostgresDSN, "postgres DSN")
	fs.StringVar(&cfg.ObjectstoreDriver, "o", cfg.ObjectstoreDriver, "object store driver")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Endpoint, "e", cfg.S3Endpoint, "S3 endpoint")
	fs.StringVar(&cfg.IdentityDriver, "i", cfg.IdentityDriver, "identity driver")
	sessionHours := fs.Int("t", int(cfg.SessionTTL.Hours()), "session lifetime (in hours)")
	fs.IntVar(&cfg.UploadWorkers, "w", cfg.UploadWorkers, "concurrent uploads")
	fs.StringVar(&cfg.GalleryOrder, "g", cfg.GalleryOrder, "gallery order")
	fs.BoolVar(&cfg.AllowVideo, "video", cfg.AllowVideo, "accept video files")
	fs.StringVar(&cfg.MetricsAddr, "x", cfg.MetricsAddr, "metrics listen address")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			cfg.SessionTTL = time.Duration(*sessionHours) * time.Hour
		}
	})
}
