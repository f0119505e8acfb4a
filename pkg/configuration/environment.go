package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/heshamhussin961-design/family-tree/pkg/logging"
)

const Production = "production"

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist, looking in the working directory first
// and then in the nearest parent directory holding a go.mod.
func LoadEnv(envFiles []string) (int, error) {
	root := moduleRoot()
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
			continue
		}
		if root == "" || filepath.IsAbs(file) {
			continue
		}
		if candidate := filepath.Join(root, file); fs.FileExists(candidate) {
			existingFiles = append(existingFiles, candidate)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

func moduleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"family_tree_db"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type SQLiteOptions struct {
	Path string `env:"SQLITE_PATH" envDefault:"family_tree.db"`
}

type ImportOptions struct {
	// Rows searched above and below a code cell for a name.
	RowWindow   int    `env:"IMPORT_ROW_WINDOW" envDefault:"10"`
	MinSegments int    `env:"IMPORT_MIN_SEGMENTS" envDefault:"2"`
	ManifestDir string `env:"IMPORT_MANIFEST_DIR" envDefault:""`
}

func (o *ImportOptions) Validate() error {
	if o.RowWindow < 1 {
		return fmt.Errorf("IMPORT_ROW_WINDOW must be at least 1, got %d", o.RowWindow)
	}
	if o.MinSegments < 1 {
		return fmt.Errorf("IMPORT_MIN_SEGMENTS must be at least 1, got %d", o.MinSegments)
	}
	return nil
}

type VisionOptions struct {
	Provider       string        `env:"VISION_PROVIDER" envDefault:"openai"` // openai or anthropic
	OpenAIKey      string        `env:"OPENAI_KEY"`
	OpenAIModel    string        `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL"`
	AnthropicKey   string        `env:"ANTHROPIC_API_KEY"`
	AnthropicURL   string        `env:"ANTHROPIC_BASE_URL"`
	AnthropicModel string        `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	MaxTokens      int           `env:"VISION_MAX_TOKENS" envDefault:"4096"`
	RetryMaxTime   time.Duration `env:"VISION_RETRY_MAX_ELAPSED" envDefault:"2m"`
	Cache          string        `env:"VISION_CACHE" envDefault:"none"` // none, memory or redis
	CacheTTL       time.Duration `env:"VISION_CACHE_TTL" envDefault:"168h"`
}

func (v *VisionOptions) Validate() error {
	switch v.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("invalid VISION_PROVIDER=%q (expected openai|anthropic)", v.Provider)
	}
	switch v.Cache {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("invalid VISION_CACHE=%q (expected none|memory|redis)", v.Cache)
	}
	if v.MaxTokens <= 0 {
		return fmt.Errorf("VISION_MAX_TOKENS must be positive, got %d", v.MaxTokens)
	}
	return nil
}

type S3Options struct {
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"S3_ENDPOINT"`
	PathStyle bool   `env:"S3_PATH_STYLE" envDefault:"false"`
}

type PrometheusOptions struct {
	TextfilePath string `env:"METRICS_TEXTFILE"`
}

type Configuration struct {
	Database   DatabaseOptions
	SQLite     SQLiteOptions
	Import     ImportOptions
	Vision     VisionOptions
	S3         S3Options
	Prometheus PrometheusOptions

	Store            string `env:"FAMILY_STORE" envDefault:"sqlite"`
	RedisURL         string `env:"REDIS_URL" envDefault:"localhost:6379"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath          string `env:"LOG_PATH" envDefault:"import_registry.log"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func Use() *Configuration {
	return singleton()
}

// Load builds a fresh configuration from the given env files and the process environment.
func Load(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}
	if err := c.Vision.Validate(); err != nil {
		return fmt.Errorf("vision configuration error: %w", err)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

func (c *Configuration) validateStore() error {
	mode := strings.ToLower(strings.TrimSpace(c.Store))
	if mode == "" {
		mode = StoreSQLite
	}
	switch mode {
	case StorePostgres, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("invalid FAMILY_STORE=%q (expected postgres|sqlite|memory)", c.Store)
	}
	c.Store = mode
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
		c.logFile = nil
	}
}
