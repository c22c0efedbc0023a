package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultIdentities is the label pool handed out to participants of a room.
var DefaultIdentities = []string{
	"Lion", "Tiger", "Bear", "Wolf", "Eagle", "Fox", "Owl", "Deer",
	"Rabbit", "Squirrel", "Hawk", "Falcon", "Panda", "Koala", "Zebra",
	"Giraffe", "Elephant", "Rhino", "Hippo", "Kangaroo",
}

type Config struct {
	Env    string       `yaml:"env" env:"ENV" env-default:"local"`
	HTTP   HTTPConfig   `yaml:"http"`
	Room   RoomConfig   `yaml:"room"`
	WebRTC WebRTCConfig `yaml:"webrtc"`
	Redis  RedisConfig  `yaml:"redis"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:","`
}

type RoomConfig struct {
	VideoSlots       int      `yaml:"video_slots" env:"ROOM_VIDEO_SLOTS" env-default:"4"`
	MaxMessageLength int      `yaml:"max_message_length" env:"ROOM_MAX_MESSAGE_LENGTH" env-default:"4000"`
	Identities       []string `yaml:"identities" env:"ROOM_IDENTITIES" env-separator:","`
}

// WebRTCConfig is advertised to clients at /api/webrtc/ice-servers.
type WebRTCConfig struct {
	STUNServers []string `yaml:"stun_servers" env:"STUN_SERVERS" env-separator:","`
}

// RedisConfig enables the presence mirror when Address is set.
type RedisConfig struct {
	Address  string        `yaml:"address" env:"REDIS_ADDRESS" env-default:""`
	Password string        `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"24h"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":4001"
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:4001", "http://localhost:3000"}
	}
	if c.Room.VideoSlots <= 0 {
		c.Room.VideoSlots = 4
	}
	if c.Room.MaxMessageLength <= 0 {
		c.Room.MaxMessageLength = 4000
	}
	if len(c.Room.Identities) == 0 {
		c.Room.Identities = append([]string(nil), DefaultIdentities...)
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 24 * time.Hour
	}
}
