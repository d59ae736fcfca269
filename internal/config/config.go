package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"sqlite" env-description:"mongo, sqlite or mysql"`
}

type MongoConfig struct {
	Host       string `yaml:"host" env-default:"127.0.0.1"`
	Port       string `yaml:"port" env-default:"27017"`
	User       string `yaml:"user" env-default:""`
	Password   string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database   string `yaml:"database" env-default:"mentorgate"`
	ReplicaSet string `yaml:"replica_set" env-default:""`
	TimeoutSec int    `yaml:"timeout_sec" env-default:"10"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"mentorgate.db"`
}

type MySQLConfig struct {
	HostName string `yaml:"hostname" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env-default:"3306"`
	UserName string `yaml:"username" env-default:""`
	Password string `yaml:"password" env:"MYSQL_PASSWORD" env-default:""`
	Database string `yaml:"database" env-default:"mentorgate"`
	Prefix   string `yaml:"prefix" env-default:""`
}

type TelegramConfig struct {
	Enabled          bool   `yaml:"enabled" env-default:"false"`
	ApiKey           string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	ReminderSchedule string `yaml:"reminder_schedule" env-default:"0 9 * * *"`
	ForwardLogs      bool   `yaml:"forward_logs" env-default:"true"`
}

type MentorConfig struct {
	CodeListLimit    int `yaml:"code_list_limit" env-default:"25"`
	RequestListLimit int `yaml:"request_list_limit" env-default:"50"`
	WatchFallbackSec int `yaml:"watch_fallback_sec" env-default:"3"`
	PollIntervalSec  int `yaml:"poll_interval_sec" env-default:"2"`
	IssueAttempts    int `yaml:"issue_attempts" env-default:"5"`
}

func (m MentorConfig) WatchFallback() time.Duration {
	return time.Duration(m.WatchFallbackSec) * time.Second
}

func (m MentorConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSec) * time.Second
}

// UserConfig is a principal upserted into the store on startup.
type UserConfig struct {
	Username   string `yaml:"username"`
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Token      string `yaml:"token"`
	Role       string `yaml:"role"`
	TelegramId int64  `yaml:"telegram_id"`
}

type Config struct {
	Env      string         `yaml:"env" env-default:"local"`
	LogPath  string         `yaml:"log_path" env-default:"/var/log/mentorgate.log"`
	Listen   Listen         `yaml:"listen"`
	Store    StoreConfig    `yaml:"store"`
	Mongo    MongoConfig    `yaml:"mongo"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Telegram TelegramConfig `yaml:"telegram"`
	Mentor   MentorConfig   `yaml:"mentor"`
	Users    []UserConfig   `yaml:"users"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
		if err = instance.check(); err != nil {
			log.Fatal(err)
		}
	})
	return instance
}

func (c *Config) check() error {
	switch c.Store.Driver {
	case DriverMongo, DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Telegram.Enabled && c.Telegram.ApiKey == "" {
		return fmt.Errorf("config: telegram enabled without api_key")
	}
	return nil
}
