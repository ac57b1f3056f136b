package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE" validate:"oneof=postgres mysql sqlite"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME" validate:"required"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR" validate:"required"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Mongo struct {
		URI      string `mapstructure:"URI"`
		Database string `mapstructure:"DATABASE"`
	} `mapstructure:"MONGO"`
	Discord struct {
		Token           string `mapstructure:"TOKEN" validate:"required"`
		GuildID         string `mapstructure:"GUILD_ID" validate:"required"`
		LogChannelID    string `mapstructure:"LOG_CHANNEL_ID"`
		StatusChannelID string `mapstructure:"STATUS_CHANNEL_ID"`
		TicketCategory  string `mapstructure:"TICKET_CATEGORY"`
	} `mapstructure:"DISCORD"`
	Telegram struct {
		Token       string `mapstructure:"TOKEN"`
		AdminSecret string `mapstructure:"ADMIN_SECRET" validate:"required_with=Token"`
	} `mapstructure:"TELEGRAM"`
	Commerce struct {
		BaseURL         string        `mapstructure:"BASE_URL" validate:"required,url"`
		APIKey          string        `mapstructure:"API_KEY" validate:"required"`
		StoreID         string        `mapstructure:"STORE_ID" validate:"required"`
		Timeout         time.Duration `mapstructure:"TIMEOUT"`
		SnapshotBackend string        `mapstructure:"SNAPSHOT_BACKEND" validate:"oneof=file redis"`
		SnapshotPath    string        `mapstructure:"SNAPSHOT_PATH"`
	} `mapstructure:"COMMERCE"`
	Sync struct {
		Interval        time.Duration `mapstructure:"INTERVAL"`
		MemberDelay     time.Duration `mapstructure:"MEMBER_DELAY"`
		CacheInterval   time.Duration `mapstructure:"CACHE_INTERVAL"`
		PurchasesPerKey int           `mapstructure:"PURCHASES_PER_KEY" validate:"gte=1"`
	} `mapstructure:"SYNC"`
	Status struct {
		APIURL   string        `mapstructure:"API_URL"`
		Interval time.Duration `mapstructure:"INTERVAL"`
	} `mapstructure:"STATUS"`
	Ticket struct {
		Store string `mapstructure:"STORE" validate:"oneof=database mongo"`
	} `mapstructure:"TICKET"`
	API struct {
		Key          string   `mapstructure:"KEY"`
		AllowOrigins []string `mapstructure:"ALLOW_ORIGINS"`
	} `mapstructure:"API"`
	Verify struct {
		CheckMX bool `mapstructure:"CHECK_MX"`
	} `mapstructure:"VERIFY"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		BucketName string `mapstructure:"BUCKET_NAME" validate:"required_with=Endpoint"`
		Secure     bool   `mapstructure:"SECURE"`
	} `mapstructure:"MINIO"`
	Otel struct {
		Endpoint    string  `mapstructure:"ENDPOINT"`
		Insecure    bool    `mapstructure:"INSECURE"`
		SampleRatio float64 `mapstructure:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "storefront-bot")
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 5*time.Second)
	v.SetDefault("DISCORD.TICKET_CATEGORY", "Tickets")
	v.SetDefault("COMMERCE.BASE_URL", "https://api.komerza.com")
	v.SetDefault("COMMERCE.TIMEOUT", 60*time.Second)
	v.SetDefault("COMMERCE.SNAPSHOT_BACKEND", "file")
	v.SetDefault("COMMERCE.SNAPSHOT_PATH", "customers_cache.json")
	v.SetDefault("SYNC.INTERVAL", 10*time.Minute)
	v.SetDefault("SYNC.MEMBER_DELAY", 500*time.Millisecond)
	v.SetDefault("SYNC.CACHE_INTERVAL", 10*time.Minute)
	v.SetDefault("SYNC.PURCHASES_PER_KEY", 5)
	v.SetDefault("STATUS.API_URL", "https://weao.gg/api/status/exploits")
	v.SetDefault("STATUS.INTERVAL", 10*time.Minute)
	v.SetDefault("TICKET.STORE", "database")
	v.SetDefault("MINIO.BUCKET_NAME", "ticket-transcripts")
	v.SetDefault("OTEL.SAMPLE_RATIO", 1.0)
}

// Load reads config.yaml (optional) and the environment into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Config loads before the application logger exists, so failures are
// written through a logger of their own.
var (
	bootstrapLogger = func() *zap.Logger {
		l, err := zap.NewProduction()
		if err != nil {
			return zap.NewExample()
		}
		return l
	}
	exit = os.Exit
)

func LoadConfig() *Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := Load(viper.New())
	if err != nil {
		log := bootstrapLogger()
		log.Error("[Config] failed to load configuration", zap.Error(err))
		_ = log.Sync()
		exit(1)
	}

	return cfg
}

var envKeys = []string{
	"DATABASE.HOST", "DATABASE.PORT", "DATABASE.DBNAME", "DATABASE.USER", "DATABASE.PASSWORD",
	"REDIS.ADDR", "REDIS.PASSWORD", "REDIS.DB",
	"MONGO.URI", "MONGO.DATABASE",
	"DISCORD.TOKEN", "DISCORD.GUILD_ID", "DISCORD.LOG_CHANNEL_ID", "DISCORD.STATUS_CHANNEL_ID",
	"TELEGRAM.TOKEN", "TELEGRAM.ADMIN_SECRET",
	"COMMERCE.API_KEY", "COMMERCE.STORE_ID",
	"TLS.ENABLE", "TLS.CERT_PATH", "TLS.KEY_PATH",
	"API.KEY", "API.ALLOW_ORIGINS",
	"VERIFY.CHECK_MX",
	"MINIO.ENDPOINT", "MINIO.ACCESS_KEY", "MINIO.SECRET_KEY", "MINIO.SECURE",
	"OTEL.ENDPOINT", "OTEL.INSECURE",
	"PYROSCOPE.ADDR",
}
