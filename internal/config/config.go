package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/LeventeLantos/sheet-messaging/internal/phone"
)

const (
	defaultSheetName   = "Whatsapp Marketing for Walk-in"
	defaultWatiBaseURL = "https://live-mt-server.wati.io/2601"
	defaultBusinessTZ  = "Asia/Hong_Kong"
)

// Config is built once at startup and treated as read-only afterwards.
type Config struct {
	Sheet     SheetConfig
	Wati      WatiConfig
	Pacing    PacingConfig
	Phone     PhoneConfig
	Business  BusinessConfig
	Campaigns CampaignConfig
	Server    ServerConfig
	Scheduler SchedulerConfig
	Redis     RedisConfig
	Log       LogConfig
}

type SheetConfig struct {
	Name        string
	ID          string
	Credentials string
}

// Identifier is the spreadsheet id when one is set, otherwise its name.
func (s SheetConfig) Identifier() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Name
}

type WatiConfig struct {
	BaseURLs    []string
	Token       string
	Timeout     time.Duration
	MaxAttempts int
}

type PacingConfig struct {
	ContactInterval time.Duration
	MessageInterval time.Duration
}

type PhoneConfig struct {
	Policy             phone.Policy
	DefaultCountryCode string
}

type BusinessConfig struct {
	TimeZone string
	Location *time.Location
}

type ServerConfig struct {
	Address string
}

type SchedulerConfig struct {
	Interval    time.Duration
	HistorySize int
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type LogConfig struct {
	Level slog.Level
}

func LoadAll() (*Config, error) {
	var errs []error

	creds, err := requireEnv("GOOGLE_CREDENTIALS")
	if err != nil {
		errs = append(errs, err)
	}
	token, err := requireEnv("WATI_API_TOKEN")
	if err != nil {
		errs = append(errs, err)
	}

	intEnv := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Sheet: SheetConfig{
			Name:        getEnv("SHEET_NAME", defaultSheetName),
			ID:          os.Getenv("SHEET_ID"),
			Credentials: creds,
		},
		Wati: WatiConfig{
			BaseURLs:    splitList(getEnv("WATI_BASE_URLS", defaultWatiBaseURL)),
			Token:       token,
			Timeout:     time.Duration(intEnv("WATI_TIMEOUT_SECONDS", 15)) * time.Second,
			MaxAttempts: intEnv("WATI_MAX_ATTEMPTS", 3),
		},
		Pacing: PacingConfig{
			ContactInterval: time.Duration(intEnv("CONTACT_INTERVAL_MS", 1000)) * time.Millisecond,
			MessageInterval: time.Duration(intEnv("MESSAGE_INTERVAL_MS", 2000)) * time.Millisecond,
		},
		Phone: PhoneConfig{
			Policy:             phone.Policy(getEnv("PHONE_POLICY", string(phone.PrefixPlus))),
			DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "852"),
		},
		Business: BusinessConfig{
			TimeZone: getEnv("BUSINESS_TZ", defaultBusinessTZ),
		},
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Scheduler: SchedulerConfig{
			Interval:    time.Duration(intEnv("SCHED_INTERVAL_SECONDS", 3600)) * time.Second,
			HistorySize: intEnv("RUN_HISTORY_SIZE", 20),
		},
	}

	if os.Getenv("REDIS_ADDR") != "" {
		cfg.Redis = RedisConfig{
			Enabled:  true,
			Address:  os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intEnv("REDIS_DB", 0),
			TTL:      time.Duration(intEnv("REDIS_TTL_SECONDS", 30*86400)) * time.Second,
		}
	}

	if err := cfg.Log.Level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %w", err))
	}

	loc, err := parseLocation(cfg.Business.TimeZone)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid BUSINESS_TZ %q: %w", cfg.Business.TimeZone, err))
	}
	cfg.Business.Location = loc

	campaigns, err := LoadCampaigns(os.Getenv("CAMPAIGN_CONFIG"))
	if err != nil {
		errs = append(errs, fmt.Errorf("CAMPAIGN_CONFIG: %w", err))
	}
	cfg.Campaigns = campaigns

	errs = append(errs, validate(cfg)...)

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) []error {
	var errs []error

	if cfg.Sheet.Identifier() == "" {
		errs = append(errs, errors.New("one of SHEET_NAME or SHEET_ID must be set"))
	}
	if len(cfg.Wati.BaseURLs) == 0 {
		errs = append(errs, errors.New("WATI_BASE_URLS must list at least one url"))
	}
	if cfg.Wati.Timeout <= 0 {
		errs = append(errs, errors.New("WATI_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Wati.MaxAttempts < 3 {
		errs = append(errs, errors.New("WATI_MAX_ATTEMPTS must be >= 3"))
	}
	if cfg.Pacing.ContactInterval < 0 {
		errs = append(errs, errors.New("CONTACT_INTERVAL_MS must be >= 0"))
	}
	if cfg.Pacing.MessageInterval < 0 {
		errs = append(errs, errors.New("MESSAGE_INTERVAL_MS must be >= 0"))
	}
	if _, err := phone.NewNormalizer(cfg.Phone.Policy, cfg.Phone.DefaultCountryCode); err != nil {
		errs = append(errs, fmt.Errorf("PHONE_POLICY / DEFAULT_COUNTRY_CODE: %w", err))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Scheduler.HistorySize <= 0 {
		errs = append(errs, errors.New("RUN_HISTORY_SIZE must be > 0"))
	}
	if cfg.Redis.Enabled && cfg.Redis.TTL <= 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be > 0"))
	}
	return errs
}

var offsetPattern = regexp.MustCompile(`^(?:UTC|GMT)?([+-])(\d{1,2})(?::?(\d{2}))?$`)

// parseLocation accepts an IANA zone name or a fixed offset such as "UTC+8" or "+08:00".
func parseLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if m := offsetPattern.FindStringSubmatch(name); m != nil {
		hours, _ := strconv.Atoi(m[2])
		mins := 0
		if m[3] != "" {
			mins, _ = strconv.Atoi(m[3])
		}
		if hours > 14 || mins > 59 {
			return nil, fmt.Errorf("offset out of range")
		}
		secs := hours*3600 + mins*60
		if m[1] == "-" {
			secs = -secs
		}
		return time.FixedZone(name, secs), nil
	}
	return time.LoadLocation(name)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requireEnv(key string) (string, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
