package configs

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config struct
type Config struct {
	App      `mapstructure:"app"`
	Remote   `mapstructure:"remote"`
	Local    `mapstructure:"local"`
	Database `mapstructure:"database"`
}

// App struct
type App struct {
	Debug    bool   `mapstructure:"debug"`
	Env      string `mapstructure:"env"`
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// Remote struct - OpenAI-compatible endpoint settings
type Remote struct {
	APIURL            string  `mapstructure:"api_url"`
	APIKey            string  `mapstructure:"api_key"`
	DefaultModel      string  `mapstructure:"default_model"`
	Timeout           int     `mapstructure:"timeout"` // seconds
	Temperature       float32 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Transport         string  `mapstructure:"transport"` // polling | incremental
	PollIntervalMs    int     `mapstructure:"poll_interval_ms"`
	MaxMalformedLines int     `mapstructure:"max_malformed_lines"`
	ListRetryAttempts int     `mapstructure:"list_retry_attempts"`
}

// Local struct - on-device model settings
type Local struct {
	ModelsDir          string  `mapstructure:"models_dir"`
	CatalogFile        string  `mapstructure:"catalog_file"`
	ServerBinary       string  `mapstructure:"server_binary"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	LoadTimeout        int     `mapstructure:"load_timeout"` // seconds
	SizeTolerance      float64 `mapstructure:"size_tolerance"`
	ProgressIntervalMs int     `mapstructure:"progress_interval_ms"`
}

// Database struct - download ledger storage
type Database struct {
	Driver     string `mapstructure:"driver"` // none | sqlite | postgres
	SQLitePath string `mapstructure:"sqlite_path"`
	Host       string `mapstructure:"host"`
	Port       string `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	DbName     string `mapstructure:"database"`
	SSLMode    bool   `mapstructure:"sslmode"`
}

var config Config

// InitViper func
func InitViper(path, env string) {
	getConfig(path, env)
}

// GetViper func
func GetViper() *Config {
	return &config
}

func setDefaults() {
	viper.SetDefault("app.env", "local")
	viper.SetDefault("app.port", "9089")
	viper.SetDefault("app.log_level", "info")

	viper.SetDefault("remote.api_url", "https://api.openai.com")
	viper.SetDefault("remote.default_model", "gpt-4o-mini")
	viper.SetDefault("remote.timeout", 30)
	viper.SetDefault("remote.temperature", 0.7)
	viper.SetDefault("remote.max_tokens", 1024)
	viper.SetDefault("remote.transport", "polling")
	viper.SetDefault("remote.poll_interval_ms", 0)
	viper.SetDefault("remote.max_malformed_lines", 0)
	viper.SetDefault("remote.list_retry_attempts", 3)

	viper.SetDefault("local.models_dir", "./data/models")
	viper.SetDefault("local.server_binary", "llama-server")
	viper.SetDefault("local.max_tokens", 512)
	viper.SetDefault("local.load_timeout", 120)
	viper.SetDefault("local.size_tolerance", 0.10)
	viper.SetDefault("local.progress_interval_ms", 100)

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.sqlite_path", "./data/ledger.db")
}

func getConfig(path, env string) {
	if env != "" {
		viper.SetConfigName("config." + env)
	} else {
		viper.SetConfigName("config")
	}
	viper.AddConfigPath(path)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()
	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || env == "" {
			panic(err)
		}
		// fall back to the base file when no per-environment file exists
		viper.SetConfigName("config")
		if err := viper.ReadInConfig(); err != nil {
			panic(err)
		}
	}
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		logrus.Infof("Config file has changed: %s", e.Name)
	})
	err = viper.Unmarshal(&config)
	if err != nil {
		logrus.Fatalln(err)
	}
	configureLogger(config.App)
}

// configureLogger applies log level and formatter from the app section
func configureLogger(app App) {
	level, err := logrus.ParseLevel(app.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if app.Debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	if app.Env != "" && app.Env != "local" && app.Env != "test" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
