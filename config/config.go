package config

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket   string        `yaml:"minio_bucket"`
	MinIOPublic   string        `yaml:"minio_public_url"`
	App           App           `yaml:"app"`
	DB            *sql.DB       `yaml:"db"`
	StoreDriver   string        `yaml:"store_driver"`
	Queue         *RabbitMQ     `yaml:"rabbitmq"`
	Storage       *minio.Client `yaml:"storage"`
	Server        Server        `yaml:"server"`
	Payments      Queue         `yaml:"payments"`
	Notifications Exchange      `yaml:"notifications"`
	Clipper       Clipper       `yaml:"clipper"`
	Dispatch      Dispatch      `yaml:"dispatch"`
	Completion    Completion    `yaml:"completion"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

// BaseURL is the public address download pages are served from.
func (a App) BaseURL() string {
	return a.Protocol + "://" + a.Host
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Pass            string        `yaml:"pass"`
	Kind            string        `yaml:"kind"`
	DialMaxTries    uint          `yaml:"dial_max_tries"`
	DialMaxInterval time.Duration `yaml:"dial_max_interval"`
}

type Queue struct {
	Exchange   string `yaml:"exchange"`
	Queue      string `yaml:"queue"`
	RoutingKey string `yaml:"routing_key"`
}

type Exchange struct {
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

type Clipper struct {
	BaseURL       string           `yaml:"base_url"`
	APIKey        string           `yaml:"api_key"`
	LaunchTimeout time.Duration    `yaml:"launch_timeout"`
	Templates     map[string]int64 `yaml:"templates"`
}

type Dispatch struct {
	Interval time.Duration `yaml:"interval"`
	PoolSize int           `yaml:"pool_size"`
}

type Completion struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	BlobTimeout   time.Duration `yaml:"blob_timeout"`
}

func setDefaults() {
	viper.SetDefault("app.environment", "develop")
	viper.SetDefault("app.protocol", "http")
	viper.SetDefault("app.host", "localhost:8080")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.workers", 4)
	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("rabbitmq_kind", "direct")
	viper.SetDefault("rabbitmq_port", 5672)
	viper.SetDefault("rabbitmq_dial_max_tries", 5)
	viper.SetDefault("rabbitmq_dial_max_interval", 10*time.Second)
	viper.SetDefault("payments.exchange", "payment_exchange")
	viper.SetDefault("payments.queue", "payment_confirmed_queue")
	viper.SetDefault("payments.routing_key", "payment.confirmed")
	viper.SetDefault("notifications.exchange", "notification_exchange")
	viper.SetDefault("notifications.routing_key", "order.completed")
	viper.SetDefault("clipper.launch_timeout", 30*time.Second)
	viper.SetDefault("dispatch.interval", time.Minute)
	viper.SetDefault("dispatch.pool_size", 8)
	viper.SetDefault("completion.max_attempts", 5)
	viper.SetDefault("completion.retry_interval", 200*time.Millisecond)
	viper.SetDefault("completion.blob_timeout", 2*time.Minute)
}

func Load(path string) (*Config, error) {
	setDefaults()
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host: viper.GetString("rabbitmq_host"),
		Port: viper.GetInt("rabbitmq_port"),
		User: viper.GetString("rabbitmq_user"),
		Pass: viper.GetString("rabbitmq_pass"),
		Kind: viper.GetString("rabbitmq_kind"),

		DialMaxTries:    viper.GetUint("rabbitmq_dial_max_tries"),
		DialMaxInterval: viper.GetDuration("rabbitmq_dial_max_interval"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: viper.GetBool("minio.use_ssl"),
	})
	if err != nil {
		return nil, err
	}

	templates := make(map[string]int64)
	for format := range viper.GetStringMap("clipper.templates") {
		templates[format] = viper.GetInt64("clipper.templates." + format)
	}

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		MinIOPublic: viper.GetString("minio.public_url"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		StoreDriver: viper.GetString("store.driver"),
		DB:          db,
		Queue:       rabbitmq,
		Storage:     minioClient,
		Payments: Queue{
			Exchange:   viper.GetString("payments.exchange"),
			Queue:      viper.GetString("payments.queue"),
			RoutingKey: viper.GetString("payments.routing_key"),
		},
		Notifications: Exchange{
			Exchange:   viper.GetString("notifications.exchange"),
			RoutingKey: viper.GetString("notifications.routing_key"),
		},
		Clipper: Clipper{
			BaseURL:       viper.GetString("clipper.base_url"),
			APIKey:        viper.GetString("clipper.api_key"),
			LaunchTimeout: viper.GetDuration("clipper.launch_timeout"),
			Templates:     templates,
		},
		Dispatch: Dispatch{
			Interval: viper.GetDuration("dispatch.interval"),
			PoolSize: viper.GetInt("dispatch.pool_size"),
		},
		Completion: Completion{
			MaxAttempts:   viper.GetInt("completion.max_attempts"),
			RetryInterval: viper.GetDuration("completion.retry_interval"),
			BlobTimeout:   viper.GetDuration("completion.blob_timeout"),
		},
	}, nil
}
