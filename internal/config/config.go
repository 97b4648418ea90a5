package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env       string          `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	WebRTC    WebRTCConfig    `yaml:"webrtc"`
	Auth      AuthConfig      `yaml:"auth"`
	Signaling SignalingConfig `yaml:"signaling"`
	Uploads   UploadsConfig   `yaml:"uploads"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowedOrigins []string `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS"`
}

type WebRTCConfig struct {
	STUNServers []string `yaml:"stun_servers"`
}

type AuthConfig struct {
	Secret      string        `yaml:"secret" env:"JWT_SECRET" env-default:""`
	TokenTTL    time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"1h"`
	AllowGuests bool          `yaml:"allow_guests" env:"ALLOW_GUESTS" env-default:"false"`
}

// UploadsConfig locates avatar files on disk and the URL prefix they are
// served under.
type UploadsConfig struct {
	Dir           string `yaml:"dir" env:"UPLOADS_DIR" env-default:"uploads"`
	URLPrefix     string `yaml:"url_prefix" env-default:"/uploads"`
	MaxAvatarSize int64  `yaml:"max_avatar_size" env-default:"5242880"`
}

// SignalingConfig tunes the per-connection websocket transport.
type SignalingConfig struct {
	SendBuffer     int           `yaml:"send_buffer" env-default:"64"`
	WriteWait      time.Duration `yaml:"write_wait" env-default:"10s"`
	PongWait       time.Duration `yaml:"pong_wait" env-default:"60s"`
	MaxMessageSize int64         `yaml:"max_message_size" env-default:"65536"`
}

// PingPeriod must stay below PongWait so the peer has time to answer.
func (c SignalingConfig) PingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
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

	if cfg.Auth.Secret == "" {
		panic("auth secret is empty")
	}

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
		c.HTTP.Address = ":8080"
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.Signaling.SendBuffer <= 0 {
		c.Signaling.SendBuffer = 64
	}
	if c.Signaling.WriteWait <= 0 {
		c.Signaling.WriteWait = 10 * time.Second
	}
	if c.Signaling.PongWait <= 0 {
		c.Signaling.PongWait = 60 * time.Second
	}
	if c.Signaling.MaxMessageSize <= 0 {
		c.Signaling.MaxMessageSize = 64 * 1024
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	if c.Uploads.URLPrefix == "" {
		c.Uploads.URLPrefix = "/uploads"
	}
	if c.Uploads.MaxAvatarSize <= 0 {
		c.Uploads.MaxAvatarSize = 5 << 20
	}
}
