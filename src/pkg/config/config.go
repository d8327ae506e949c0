package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"github.com/q-controller/guessit/src/pkg/utils"
)

const (
	BackendMemory   = "memory"
	BackendBlob     = "blob"
	BackendDocument = "document"

	BlobLocal = "local"
	BlobS3    = "s3"

	DocumentBadger   = "badger"
	DocumentSQLite   = "sqlite"
	DocumentPostgres = "postgres"
	DocumentMemory   = "memory"
)

type Config struct {
	Port          int     `yaml:"port" env:"GUESSIT_PORT"`
	SessionCookie string  `yaml:"session_cookie" env:"GUESSIT_SESSION_COOKIE"`
	Storage       Storage `yaml:"storage" envPrefix:"GUESSIT_STORAGE_"`
}

type Storage struct {
	// Backend is one of memory, blob or document.
	Backend  string   `yaml:"backend" env:"BACKEND"`
	Blob     Blob     `yaml:"blob" envPrefix:"BLOB_"`
	Document Document `yaml:"document" envPrefix:"DOCUMENT_"`
}

type Blob struct {
	// Kind is local or s3.
	Kind string `yaml:"kind" env:"KIND"`
	// Records is where item records live: memory or document.
	Records string    `yaml:"records" env:"RECORDS"`
	Local   LocalBlob `yaml:"local" envPrefix:"LOCAL_"`
	S3      S3Blob    `yaml:"s3" envPrefix:"S3_"`
}

type LocalBlob struct {
	Root      string `yaml:"root" env:"ROOT"`
	URLPrefix string `yaml:"url_prefix" env:"URL_PREFIX"`
}

type S3Blob struct {
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	Prefix    string `yaml:"prefix" env:"PREFIX"`
	Region    string `yaml:"region" env:"REGION"`
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL"`
}

type Document struct {
	// Kind is badger, sqlite, postgres or memory.
	Kind string `yaml:"kind" env:"KIND"`
	// Path is the badger directory or the sqlite file.
	Path string `yaml:"path" env:"PATH"`
	DSN  string `yaml:"dsn" env:"DSN"`
}

// urlPrefix is one or more plain path segments, as the blob route is
// registered under it.
var urlPrefix = regexp.MustCompile(`^(/[A-Za-z0-9._~-]+)+/?$`)

func Default() *Config {
	return &Config{
		Port:          8080,
		SessionCookie: "guessit_session",
		Storage: Storage{
			Backend: BackendMemory,
			Blob: Blob{
				Kind:    BlobLocal,
				Records: BackendMemory,
				Local: LocalBlob{
					Root:      "./data/blobs",
					URLPrefix: "/blobs",
				},
			},
			Document: Document{
				Kind: DocumentBadger,
				Path: "./data/documents",
			},
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when empty), then the environment, including a .env file in the
// working directory.
func Load(path string) (*Config, error) {
	// Load .env if available; ignore error if file does not exist
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := utils.Unmarshal(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}
	if c.SessionCookie == "" {
		errs = append(errs, errors.New("session_cookie is empty"))
	}

	s := c.Storage
	switch s.Backend {
	case BackendMemory:
	case BackendBlob:
		errs = append(errs, s.Blob.validate()...)
		if s.Blob.Records == BackendDocument {
			errs = append(errs, s.Document.validate()...)
		}
	case BackendDocument:
		errs = append(errs, s.Document.validate()...)
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", s.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (b Blob) validate() []error {
	var errs []error
	switch b.Kind {
	case BlobLocal:
		if b.Local.Root == "" {
			errs = append(errs, errors.New("blob.local.root is empty"))
		}
		if !urlPrefix.MatchString(b.Local.URLPrefix) {
			errs = append(errs, fmt.Errorf("blob.local.url_prefix %q is not an absolute path", b.Local.URLPrefix))
		}
	case BlobS3:
		if b.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is empty"))
		}
		if b.S3.PublicURL != "" && !utils.IsHTTP(b.S3.PublicURL) {
			errs = append(errs, fmt.Errorf("blob.s3.public_url %q is not an http(s) URL", b.S3.PublicURL))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob kind %q", b.Kind))
	}

	switch b.Records {
	case BackendMemory, BackendDocument:
	default:
		errs = append(errs, fmt.Errorf("unknown blob records store %q", b.Records))
	}
	return errs
}

func (d Document) validate() []error {
	switch d.Kind {
	case DocumentMemory:
	case DocumentBadger, DocumentSQLite:
		if d.Path == "" {
			return []error{fmt.Errorf("document.path is empty for %s", d.Kind)}
		}
	case DocumentPostgres:
		if d.DSN == "" {
			return []error{errors.New("document.dsn is empty for postgres")}
		}
	default:
		return []error{fmt.Errorf("unknown document kind %q", d.Kind)}
	}
	return nil
}
