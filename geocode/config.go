package geocode

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/geodrive/clock"
)

// Config is the orchestrator configuration. Defaults target the
// geobigdata.go.kr geocoding portal; credentials are always required.
type Config struct {
	Portal   PortalConfig `yaml:"portal"`
	Locators Locators     `yaml:"locators"`
	Limits   Limits       `yaml:"limits"`

	// CaptureDir receives pre-download screenshots. It must be distinct
	// from the session download dir, whose listing delta is the download
	// completion signal.
	CaptureDir string `yaml:"capture_dir"`

	Logger *slog.Logger `yaml:"-"`
	Clock  clock.Clock  `yaml:"-"`
}

// PortalConfig names the three page contracts the portal exposes.
type PortalConfig struct {
	LoginURL      string `yaml:"login_url"`
	UploadURL     string `yaml:"upload_url"`
	MonitoringURL string `yaml:"monitoring_url"`
	// MonitoringWindow is the URL substring identifying the monitoring
	// popup when the portal opens one.
	MonitoringWindow string `yaml:"monitoring_window"`
	UserID           string `yaml:"user_id"`
	Password         string `yaml:"password"`
}

// Locators is the XPath table for every element the orchestrator
// touches. Row locators are built per artifact: RowByFile is a template
// taking the submitted filename, and the control locators are appended
// to the expanded row.
type Locators struct {
	LoginID       string `yaml:"login_id"`
	LoginPassword string `yaml:"login_password"`
	LoginSubmit   string `yaml:"login_submit"`
	// LoginProbe is an element that exists only when logged in.
	LoginProbe string `yaml:"login_probe"`

	FileInput     string `yaml:"file_input"`
	ColumnPicker  string `yaml:"column_picker"`
	ColumnOption  string `yaml:"column_option"`
	CharsetSelect string `yaml:"charset_select"`
	CharsetValue  string `yaml:"charset_value"`
	StartButton   string `yaml:"start_button"`

	RowByFile   string `yaml:"row_by_file"`
	RowDownload string `yaml:"row_download"`
	RowClear    string `yaml:"row_clear"`
}

// Limits bounds every wait and retry loop.
type Limits struct {
	// FindTimeout bounds ordinary element waits.
	FindTimeout time.Duration `yaml:"find_timeout"`
	// ProbeTimeout bounds one monitoring-row probe. Kept short: the
	// row poll refreshes and retries anyway.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// RowRetries is the number of retries after the initial probe.
	RowRetries int `yaml:"row_retries"`
	// ProbeBackoff is slept after a faulted probe before the next one.
	ProbeBackoff time.Duration `yaml:"probe_backoff"`
	// EnableChecks bounds the disabled-control refresh loop. The portal
	// is expected to finish every job eventually, but spinning forever
	// on a wedged row helps nobody.
	EnableChecks  int           `yaml:"enable_checks"`
	EnableBackoff time.Duration `yaml:"enable_backoff"`
	// DownloadTimeout bounds the post-click download wait.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// PollInterval is the download-directory polling frequency.
	PollInterval time.Duration `yaml:"poll_interval"`
	// WindowTimeout bounds the wait for the monitoring popup.
	WindowTimeout time.Duration `yaml:"window_timeout"`
}

// LoadConfig reads a YAML configuration file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("geocode: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("geocode: parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	p := &c.Portal
	if p.LoginURL == "" {
		p.LoginURL = "http://geobigdata.go.kr/portal/uat/uia/egovLoginUsr.do"
	}
	if p.UploadURL == "" {
		p.UploadURL = "http://geobigdata.go.kr/portal/analysis/geoCoding.do"
	}
	if p.MonitoringURL == "" {
		p.MonitoringURL = "http://geobigdata.go.kr/portal/geomonitoring/geocodingMonitoring.do"
	}
	if p.MonitoringWindow == "" {
		p.MonitoringWindow = "geocodingMonitoring"
	}

	l := &c.Locators
	if l.LoginID == "" {
		l.LoginID = `//input[@name="id"]`
	}
	if l.LoginPassword == "" {
		l.LoginPassword = `//input[@name="password"]`
	}
	if l.LoginSubmit == "" {
		l.LoginSubmit = `//input[@name="ip_login"]`
	}
	if l.LoginProbe == "" {
		l.LoginProbe = `//a[text()="로그아웃"]`
	}
	if l.FileInput == "" {
		l.FileInput = `//input[@id="m_file"]`
	}
	if l.ColumnPicker == "" {
		l.ColumnPicker = `//input[@value="칼럼을 선택하세요."]`
	}
	if l.ColumnOption == "" {
		l.ColumnOption = `//li[text()="REFADDR"]`
	}
	if l.CharsetSelect == "" {
		l.CharsetSelect = `//select[@id="charsetSelect"]`
	}
	if l.CharsetValue == "" {
		l.CharsetValue = "EUC-KR"
	}
	if l.StartButton == "" {
		l.StartButton = `//button[text()="Shape 다운로드"]`
	}
	if l.RowByFile == "" {
		l.RowByFile = `//div[contains(text(), "%s")]/..`
	}
	if l.RowDownload == "" {
		l.RowDownload = `/following-sibling::td[3]//*[text()="다운로드"]`
	}
	if l.RowClear == "" {
		l.RowClear = `/following-sibling::td[3]//*[text()="내역삭제"]`
	}

	m := &c.Limits
	if m.FindTimeout <= 0 {
		m.FindTimeout = 30 * time.Second
	}
	if m.ProbeTimeout <= 0 {
		m.ProbeTimeout = 5 * time.Second
	}
	if m.RowRetries <= 0 {
		m.RowRetries = 30
	}
	if m.ProbeBackoff <= 0 {
		m.ProbeBackoff = 5 * time.Second
	}
	if m.EnableChecks <= 0 {
		m.EnableChecks = 360
	}
	if m.EnableBackoff <= 0 {
		m.EnableBackoff = 10 * time.Second
	}
	if m.DownloadTimeout <= 0 {
		m.DownloadTimeout = time.Hour
	}
	if m.PollInterval <= 0 {
		m.PollInterval = 10 * time.Second
	}
	if m.WindowTimeout <= 0 {
		m.WindowTimeout = 30 * time.Second
	}

	if c.CaptureDir == "" {
		c.CaptureDir = "captures"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = clock.System{}
	}
}

// Validate reports configuration the orchestrator cannot run without.
func (c *Config) Validate() error {
	if c.Portal.UserID == "" || c.Portal.Password == "" {
		return fmt.Errorf("geocode: portal credentials are required")
	}
	return nil
}
