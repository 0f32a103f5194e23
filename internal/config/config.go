package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env                string        `yaml:"env" env:"ENV" env-default:"local"`
	Issuer             string        `yaml:"issuer" env:"OAUTH_ISSUER" env-required:"true"`
	AuthRequestExpiry  time.Duration `yaml:"auth_request_expiry" env:"OAUTH_AUTH_REQUEST_EXPIRY" env-default:"10m"`
	AuthCodeExpiry     time.Duration `yaml:"auth_code_expiry" env:"OAUTH_AUTH_CODE_EXPIRY" env-default:"60s"`
	AccessTokenExpiry  time.Duration `yaml:"access_token_expiry" env:"OAUTH_ACCESS_TOKEN_EXPIRY" env-default:"1h"`
	RefreshTokenExpiry time.Duration `yaml:"refresh_token_expiry" env:"OAUTH_REFRESH_TOKEN_EXPIRY" env-default:"720h"`
	ConsentURL         string        `yaml:"consent_url" env:"CONSENT_URL" env-required:"true"`
	LoginURL           string        `yaml:"login_url" env:"LOGIN_URL" env-required:"true"`
	HTTP               HTTPConfig    `yaml:"http"`
	Redis              RedisConfig   `yaml:"redis"`
	Keys               KeysConfig    `yaml:"keys"`
	Claims             ClaimsConfig  `yaml:"claims"`
	Audit              AuditConfig   `yaml:"audit"`
}

type HTTPConfig struct {
	Port    int           `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// KeysConfig selects the signing key store. With vault enabled keys are read
// from the KV mount; otherwise PEM files from key_dir are loaded, and
// bootstrap_public_pem (if set) serves as a verify-only fallback kid when the
// primary store is empty.
type KeysConfig struct {
	VaultEnabled       bool   `yaml:"vault_enabled" env:"VAULT_ENABLED"`
	VaultAddr          string `yaml:"vault_addr" env:"VAULT_ADDR"`
	VaultToken         string `yaml:"vault_token" env:"VAULT_TOKEN"`
	VaultMount         string `yaml:"vault_mount" env:"VAULT_MOUNT" env-default:"secret"`
	VaultKeyPath       string `yaml:"vault_key_path" env:"VAULT_KEY_PATH" env-default:"oauth/signing-keys"`
	KeyDir             string `yaml:"key_dir" env:"KEY_DIR"`
	BootstrapPublicPEM string `yaml:"bootstrap_public_pem" env:"BOOTSTRAP_PUBLIC_PEM"`
}

type ClaimsConfig struct {
	BaseURL string        `yaml:"base_url" env:"CLAIMS_BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env-default:"3s"`
}

type AuditConfig struct {
	AMQPURL  string `yaml:"amqp_url" env:"AUDIT_AMQP_URL"`
	Exchange string `yaml:"exchange" env:"AUDIT_EXCHANGE" env-default:"oauth.events"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}
	return MustLoadPath(path)
}

func MustLoadPath(path string) *Config {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config path does not exist: " + path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// Priority: flag > env > default
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}
