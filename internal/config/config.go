package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Browser engines accepted by browser_type.
const (
	BrowserAuto              = "auto"
	BrowserChrome            = "chrome"
	BrowserDocker            = "docker"
	BrowserRemoteAuto        = "remote-auto"
	BrowserRemoteChrome      = "remote-chrome"
	BrowserRemoteBrowserless = "remote-browserless"
	BrowserReconnect         = "reconnect"
)

var browserTypes = []string{
	BrowserAuto, BrowserChrome, BrowserDocker,
	BrowserRemoteAuto, BrowserRemoteChrome, BrowserRemoteBrowserless,
	BrowserReconnect,
}

// loginMethods includes the aliases the auth package accepts.
var loginMethods = []string{"auto", "form", "primary", "twitter", "alt1", "google", "alt2"}

// CredentialMethods are the login methods that take credentials.
var CredentialMethods = []string{"form", "twitter", "google"}

// Config holds all application configuration
type Config struct {
	BaseURL      string `toml:"base_url"`
	LoginMethod  string `toml:"login_method"`
	BrowserType  string `toml:"browser_type"`
	Debug        bool   `toml:"debug"`
	ShowWindow   bool   `toml:"show_window"`
	KeepAlive    bool   `toml:"keep_alive"`
	ForceUpload  bool   `toml:"force_upload"`
	ElementsFile string `toml:"elements_file"`
	StorePath    string `toml:"store_path"`

	Upload      UploadConfig          `toml:"upload"`
	Discount    DiscountConfig        `toml:"discount"`
	Remote      RemoteConfig          `toml:"remote"`
	Chrome      ChromeConfig          `toml:"chrome"`
	Docker      DockerConfig          `toml:"docker"`
	Timing      TimingConfig          `toml:"timing"`
	Email       EmailConfig           `toml:"email"`
	Credentials map[string]Credential `toml:"credentials"`
}

type UploadConfig struct {
	// Max truncates the attachment list; 0 means no limit.
	Max                int    `toml:"max"`
	MaxDurationSeconds int    `toml:"max_duration_seconds"`
	Workers            int    `toml:"workers"`
	DownloadDir        string `toml:"download_dir"`
}

// DiscountConfig is carried through to the caller untouched apart from
// validation.
type DiscountConfig struct {
	MinMonths int     `toml:"min_months"`
	MaxMonths int     `toml:"max_months"`
	MinAmount float64 `toml:"min_amount"`
	MaxAmount float64 `toml:"max_amount"`
}

type RemoteConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type ChromeConfig struct {
	RemoteDebuggingPort int    `toml:"remote_debugging_port"`
	ExecPath            string `toml:"exec_path"`
	UserDataDir         string `toml:"user_data_dir"`
}

type DockerConfig struct {
	Image string `toml:"image"`
}

type TimingConfig struct {
	PollIntervalMillis   int `toml:"poll_interval_ms"`
	ActionTimeoutSeconds int `toml:"action_timeout_seconds"`
	HomeTimeoutSeconds   int `toml:"home_timeout_seconds"`
	LoginTimeoutSeconds  int `toml:"login_timeout_seconds"`
	CaptchaDelaySeconds  int `toml:"captcha_delay_seconds"`
	UploadSettleMillis   int `toml:"upload_settle_ms"`
	KeepAliveMinutes     int `toml:"keep_alive_minutes"`
}

// EmailConfig sends a short report after each submission. Leaving
// to_address empty turns reports off.
type EmailConfig struct {
	Provider string `toml:"provider"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

// Enabled reports whether submission reports should be mailed.
func (e EmailConfig) Enabled() bool {
	return e.ToAddr != ""
}

type Credential struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		BaseURL:     "https://onlyfans.com",
		LoginMethod: "auto",
		BrowserType: BrowserAuto,
		Upload: UploadConfig{
			MaxDurationSeconds: 600,
			Workers:            3,
		},
		Remote: RemoteConfig{
			Host: "127.0.0.1",
			Port: 9222,
		},
		Docker: DockerConfig{
			Image: "browserless/chrome:latest",
		},
		Timing: TimingConfig{
			PollIntervalMillis:   1000,
			ActionTimeoutSeconds: 15,
			HomeTimeoutSeconds:   300,
			LoginTimeoutSeconds:  300,
			CaptchaDelaySeconds:  5,
			UploadSettleMillis:   1500,
			KeepAliveMinutes:     9,
		},
		Email: EmailConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
		Credentials: map[string]Credential{},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "postbot"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from the default path. A missing file yields the
// defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path over the defaults, so keys absent from
// the file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if cfg.Credentials == nil {
		cfg.Credentials = map[string]Credential{}
	}
	return cfg, nil
}

// Save writes config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// Validate rejects values no component can act on.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	}
	if !slices.Contains(browserTypes, c.BrowserType) {
		errs = append(errs, fmt.Errorf("unknown browser_type %q (want one of %s)", c.BrowserType, strings.Join(browserTypes, ", ")))
	}
	if !slices.Contains(loginMethods, strings.ToLower(c.LoginMethod)) {
		errs = append(errs, fmt.Errorf("unknown login_method %q", c.LoginMethod))
	}
	if c.Upload.Max < 0 {
		errs = append(errs, errors.New("upload.max must not be negative"))
	}
	if c.Upload.Workers < 1 {
		errs = append(errs, errors.New("upload.workers must be at least 1"))
	}
	if c.Upload.MaxDurationSeconds < 1 {
		errs = append(errs, errors.New("upload.max_duration_seconds must be positive"))
	}
	if c.Timing.PollIntervalMillis < 1 {
		errs = append(errs, errors.New("timing.poll_interval_ms must be positive"))
	}

	if e := c.Email; e.Enabled() && (e.SMTPHost == "" || e.FromAddr == "") {
		errs = append(errs, errors.New("email.smtp_host and email.from_address are required when email.to_address is set"))
	}

	d := c.Discount
	if d.MinMonths < 0 || d.MaxMonths < 0 || d.MinAmount < 0 || d.MaxAmount < 0 {
		errs = append(errs, errors.New("discount values must not be negative"))
	}
	if d.MaxMonths > 0 && d.MinMonths > d.MaxMonths {
		errs = append(errs, fmt.Errorf("discount.min_months %d exceeds max_months %d", d.MinMonths, d.MaxMonths))
	}
	if d.MaxAmount > 0 && d.MinAmount > d.MaxAmount {
		errs = append(errs, fmt.Errorf("discount.min_amount %.2f exceeds max_amount %.2f", d.MinAmount, d.MaxAmount))
	}
	return errors.Join(errs...)
}

// ApplyEnv loads envFile (if it exists) into the environment and lets
// POSTBOT_<METHOD>_USERNAME and POSTBOT_<METHOD>_PASSWORD override stored
// credentials, and POSTBOT_SMTP_PASSWORD the mail password. Variables
// already set in the process win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	if c.Credentials == nil {
		c.Credentials = map[string]Credential{}
	}
	for _, method := range CredentialMethods {
		prefix := "POSTBOT_" + strings.ToUpper(method) + "_"
		cred := c.Credentials[method]
		if v := os.Getenv(prefix + "USERNAME"); v != "" {
			cred.Username = v
		}
		if v := os.Getenv(prefix + "PASSWORD"); v != "" {
			cred.Password = v
		}
		if cred != (Credential{}) {
			c.Credentials[method] = cred
		}
	}
	if v := os.Getenv("POSTBOT_SMTP_PASSWORD"); v != "" {
		c.Email.SMTPPass = v
	}
	return nil
}

// Credential returns the stored credential for a canonical method name.
func (c *Config) Credential(method string) Credential {
	return c.Credentials[method]
}

func (u UploadConfig) MaxDuration() time.Duration {
	return time.Duration(u.MaxDurationSeconds) * time.Second
}

func (t TimingConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMillis) * time.Millisecond
}

func (t TimingConfig) ActionTimeout() time.Duration {
	return time.Duration(t.ActionTimeoutSeconds) * time.Second
}

func (t TimingConfig) HomeTimeout() time.Duration {
	return time.Duration(t.HomeTimeoutSeconds) * time.Second
}

func (t TimingConfig) LoginTimeout() time.Duration {
	return time.Duration(t.LoginTimeoutSeconds) * time.Second
}

func (t TimingConfig) CaptchaDelay() time.Duration {
	return time.Duration(t.CaptchaDelaySeconds) * time.Second
}

func (t TimingConfig) UploadSettle() time.Duration {
	return time.Duration(t.UploadSettleMillis) * time.Millisecond
}

func (t TimingConfig) KeepAliveInterval() time.Duration {
	return time.Duration(t.KeepAliveMinutes) * time.Minute
}

// StoreFile returns store_path, or postbot.db in the config directory.
func (c *Config) StoreFile() (string, error) {
	if c.StorePath != "" {
		return c.StorePath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "postbot.db"), nil
}
