package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// EnvPrefix es el prefijo de todas las variables de entorno.
const EnvPrefix = "BROKERDISCO_"

type Config struct {
	App struct {
		// dev | prod | test
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
		// client | broker: rol por defecto de los comandos del CLI
		Role string `yaml:"role"`
	} `yaml:"app"`

	// Candidates vacío usa la flota conocida (broker.KnownCandidates).
	Candidates        []Candidate `yaml:"candidates"`
	TrustDebugBrokers bool        `yaml:"trust_debug_brokers"`

	Discovery struct {
		ForceLegacyWindow time.Duration `yaml:"force_legacy_window"`
		BackupTimeout     time.Duration `yaml:"backup_timeout"`
		SupportCacheSize  int           `yaml:"support_cache_size"`
		LegacyAccountType string        `yaml:"legacy_account_type"`
	} `yaml:"discovery"`

	Stores struct {
		Client StoreConfig `yaml:"client"`
		Broker StoreConfig `yaml:"broker"`
	} `yaml:"stores"`

	Transports struct {
		// application id -> base URL del responder de esa app
		HTTP          map[string]string `yaml:"http"`
		AccountBackup struct {
			Enabled bool `yaml:"enabled"`
			// application id -> tipo de cuenta; vacío usa los tipos por defecto
			AccountTypes map[string]string `yaml:"account_types"`
		} `yaml:"account_backup"`
	} `yaml:"transports"`

	Device struct {
		Path string `yaml:"path"`
	} `yaml:"device"`

	Server struct {
		Addr string `yaml:"addr"`
		// LegacyOnly hace que el responder conteste legacy_only a todo descubrimiento.
		LegacyOnly bool `yaml:"legacy_only"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Candidate es una candidata declarada en el archivo.
type Candidate struct {
	AppID       string `yaml:"app_id"`
	Fingerprint string `yaml:"fingerprint"`
	Nickname    string `yaml:"nickname"`
	Debug       bool   `yaml:"debug"`
}

// StoreConfig configura el storage durable de un rol.
type StoreConfig struct {
	Kind      string `yaml:"kind"` // memory | redis | bolt | fs
	Namespace string `yaml:"namespace"`
	Redis     struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Bolt struct {
		Path string `yaml:"path"`
	} `yaml:"bolt"`
	FS struct {
		Dir string `yaml:"dir"`
	} `yaml:"fs"`
}

// LoadDotEnv carga archivos .env si existen. Los que faltan se ignoran.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// Load lee path (puede ser "": solo defaults + entorno), aplica overrides de
// entorno y defaults. No valida: llamar Validate.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.Role == "" {
		c.App.Role = string(broker.RoleClient)
	}
	if c.Discovery.ForceLegacyWindow == 0 {
		c.Discovery.ForceLegacyWindow = 60 * time.Minute
	}
	if c.Discovery.BackupTimeout == 0 {
		c.Discovery.BackupTimeout = 5 * time.Second
	}
	if c.Discovery.SupportCacheSize == 0 {
		c.Discovery.SupportCacheSize = 64
	}
	if c.Discovery.LegacyAccountType == "" {
		c.Discovery.LegacyAccountType = broker.LegacyAccountType
	}
	if c.Stores.Client.Kind == "" {
		c.Stores.Client.Kind = string(storage.DriverMemory)
	}
	if c.Stores.Broker.Kind == "" {
		c.Stores.Broker.Kind = string(storage.DriverMemory)
	}
	if c.Stores.Client.Namespace == "" {
		c.Stores.Client.Namespace = broker.RoleClient.Namespace()
	}
	if c.Stores.Broker.Namespace == "" {
		c.Stores.Broker.Namespace = broker.RoleBroker.Namespace()
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8085"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides pisa el archivo con variables BROKERDISCO_*.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("ROLE"); ok {
		c.App.Role = v
	}
	if v, ok := getEnvBool("TRUST_DEBUG_BROKERS"); ok {
		c.TrustDebugBrokers = v
	}

	// DISCOVERY
	if v, ok := getEnvDur("FORCE_LEGACY_WINDOW"); ok {
		c.Discovery.ForceLegacyWindow = v
	}
	if v, ok := getEnvDur("BACKUP_TIMEOUT"); ok {
		c.Discovery.BackupTimeout = v
	}
	if v, ok := getEnvInt("SUPPORT_CACHE_SIZE"); ok {
		c.Discovery.SupportCacheSize = v
	}
	if v, ok := getEnvStr("LEGACY_ACCOUNT_TYPE"); ok {
		c.Discovery.LegacyAccountType = v
	}

	// STORES
	c.Stores.Client.applyEnv("CLIENT_STORE_")
	c.Stores.Broker.applyEnv("BROKER_STORE_")

	// TRANSPORTS
	if v, ok := getEnvKVList("TRANSPORTS_HTTP", ","); ok {
		c.Transports.HTTP = v
	}
	if v, ok := getEnvBool("ACCOUNT_BACKUP_ENABLED"); ok {
		c.Transports.AccountBackup.Enabled = v
	}

	// DEVICE / SERVER / METRICS
	if v, ok := getEnvStr("DEVICE_PATH"); ok {
		c.Device.Path = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvBool("SERVER_LEGACY_ONLY"); ok {
		c.Server.LegacyOnly = v
	}
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}

func (s *StoreConfig) applyEnv(prefix string) {
	if v, ok := getEnvStr(prefix + "KIND"); ok {
		s.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr(prefix + "NAMESPACE"); ok {
		s.Namespace = v
	}
	if v, ok := getEnvStr(prefix + "REDIS_ADDR"); ok {
		s.Redis.Addr = v
	}
	if v, ok := getEnvStr(prefix + "REDIS_PASSWORD"); ok {
		s.Redis.Password = v
	}
	if v, ok := getEnvInt(prefix + "REDIS_DB"); ok {
		s.Redis.DB = v
	}
	if v, ok := getEnvStr(prefix + "BOLT_PATH"); ok {
		s.Bolt.Path = v
	}
	if v, ok := getEnvStr(prefix + "FS_DIR"); ok {
		s.FS.Dir = v
	}
}

// Validate revisa valores críticos. Devuelve todos los problemas juntos.
func (c *Config) Validate() error {
	var err error
	switch c.App.Env {
	case "dev", "prod", "test":
	default:
		err = multierr.Append(err, fmt.Errorf("app.env: unknown value %q", c.App.Env))
	}
	if _, perr := broker.ParseRole(c.App.Role); perr != nil {
		err = multierr.Append(err, fmt.Errorf("app.role: %w", perr))
	}
	for i, cand := range c.Candidates {
		if strings.TrimSpace(cand.AppID) == "" || strings.TrimSpace(cand.Fingerprint) == "" {
			err = multierr.Append(err, fmt.Errorf("candidates[%d]: app_id and fingerprint are required", i))
		}
	}
	if c.Discovery.ForceLegacyWindow < 0 {
		err = multierr.Append(err, errors.New("discovery.force_legacy_window must not be negative"))
	}
	if c.Discovery.BackupTimeout < 0 {
		err = multierr.Append(err, errors.New("discovery.backup_timeout must not be negative"))
	}
	for _, role := range []broker.Role{broker.RoleClient, broker.RoleBroker} {
		sc := c.Store(role)
		if _, perr := storage.ParseDriver(sc.Kind); perr != nil {
			err = multierr.Append(err, fmt.Errorf("stores.%s: %w", role, perr))
		}
	}
	if c.Stores.Client.location() == c.Stores.Broker.location() {
		err = multierr.Append(err, fmt.Errorf("stores: client and broker must not share namespace %q", c.Stores.Client.Namespace))
	}
	return err
}

// Store devuelve la configuración de storage del rol.
func (c *Config) Store(role broker.Role) StoreConfig {
	if role == broker.RoleBroker {
		return c.Stores.Broker
	}
	return c.Stores.Client
}

// StorageConfig traduce a storage.Config.
func (s StoreConfig) StorageConfig() storage.Config {
	var out storage.Config
	out.Driver = storage.Driver(strings.ToLower(strings.TrimSpace(s.Kind)))
	out.Namespace = s.Namespace
	out.Redis.Addr = s.Redis.Addr
	out.Redis.Password = s.Redis.Password
	out.Redis.DB = s.Redis.DB
	out.Bolt.Path = s.Bolt.Path
	out.FS.Dir = s.FS.Dir
	return out
}

func (s StoreConfig) location() string {
	kind := strings.ToLower(strings.TrimSpace(s.Kind))
	switch kind {
	case "redis":
		return fmt.Sprintf("redis|%s/%d|%s", s.Redis.Addr, s.Redis.DB, s.Namespace)
	case "bolt":
		return "bolt|" + s.Bolt.Path + "|" + s.Namespace
	case "fs":
		return "fs|" + s.FS.Dir + "|" + s.Namespace
	default:
		return "memory||" + s.Namespace
	}
}

// CandidateSet arma el conjunto confiable: el declarado o la flota conocida,
// filtrado por TrustDebugBrokers.
func (c *Config) CandidateSet() *broker.CandidateSet {
	if len(c.Candidates) == 0 {
		return broker.KnownCandidates(c.TrustDebugBrokers)
	}
	list := make([]broker.Candidate, 0, len(c.Candidates))
	for _, cand := range c.Candidates {
		list = append(list, broker.Candidate{
			Identity: broker.Identity{
				ApplicationID:      strings.TrimSpace(cand.AppID),
				SigningFingerprint: strings.TrimSpace(cand.Fingerprint),
				Nickname:           cand.Nickname,
			},
			Debug: cand.Debug,
		})
	}
	return broker.NewCandidateSet(list...).Filter(c.TrustDebugBrokers)
}

// parse env of form "k1=v1<sep>k2=v2" into map
func parseKVList(s, sep string) map[string]string {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]string{}
	}
	items := strings.Split(s, sep)
	out := make(map[string]string, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		// split at first '='
		if i := strings.IndexRune(it, '='); i > 0 {
			k := strings.TrimSpace(it[:i])
			v := strings.TrimSpace(it[i+1:])
			if k != "" && v != "" {
				out[k] = v
			}
		}
	}
	return out
}

func getEnvKVList(key, sep string) (map[string]string, bool) {
	if s, ok := getEnvStr(key); ok {
		return parseKVList(s, sep), true
	}
	return nil, false
}
