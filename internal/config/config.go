package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel     string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort     string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis        Redis  `yaml:"redis"`
	Mongo        Mongo  `yaml:"mongo"`
	Room         Room   `yaml:"room"`
	JWTSecretKey string `yaml:"jwt-secret-key" env:"JWT_SECRET_KEY" env-required:"true"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Mongo struct {
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"tictactoe"`
}

// Room - lifecycle policy for shared rooms.
type Room struct {
	TTL           time.Duration `yaml:"ttl" env:"ROOM_TTL" env-default:"24h"`
	FinishedTTL   time.Duration `yaml:"finished-ttl" env:"ROOM_FINISHED_TTL" env-default:"1h"`
	CodeAttempts  int           `yaml:"code-attempts" env:"ROOM_CODE_ATTEMPTS" env-default:"10"`
	ValidateMoves bool          `yaml:"validate-moves" env:"ROOM_VALIDATE_MOVES" env-default:"false"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
