package core

import "time"

// Run statuses
const (
	RunStatusPending   = "pending"
	RunStatusCompleted = "completed"
	RunStatusEmpty     = "empty"
	RunStatusFailed    = "failed"
)

// History action types
const (
	ActionLogin    = "Login"
	ActionExport   = "Export"
	ActionDownload = "Download"
)

// DateRange is the reporting window, inclusive on both ends
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ReportRun records one export attempt
type ReportRun struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RunID     string    `gorm:"uniqueIndex;not null" json:"run_id"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	Status    string    `gorm:"index;not null" json:"status"` // pending, completed, empty, failed
	FileName  string    `json:"file_name"`
	RowCount  int       `json:"row_count"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReportRow is a single row of a downloaded report, stored as a JSON object
type ReportRow struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	RunID    string `gorm:"index;not null" json:"run_id"`
	RowIndex int    `gorm:"not null" json:"row_index"`
	Data     string `gorm:"type:text;not null" json:"data"`
}

// History represents an action log entry
type History struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActionType string    `gorm:"index;not null" json:"action_type"` // Login, Export, Download
	Details    string    `gorm:"type:text" json:"details"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
}

// StealthConfig holds humanization parameters
type StealthConfig struct {
	TypingSpeedMin  int     `mapstructure:"typing_speed_min" validate:"gte=1"` // WPM minimum
	TypingSpeedMax  int     `mapstructure:"typing_speed_max" validate:"gte=1"` // WPM maximum
	TypoProbability float64 `mapstructure:"typo_probability" validate:"gte=0,lte=1"`
	MouseSpeedMin   float64 `mapstructure:"mouse_speed_min" validate:"gt=0"`
	MouseSpeedMax   float64 `mapstructure:"mouse_speed_max" validate:"gt=0"`
	OvershootChance float64 `mapstructure:"overshoot_chance" validate:"gte=0,lte=1"`
	BaseDelayMin    float64 `mapstructure:"base_delay_min"` // seconds
	BaseDelayMax    float64 `mapstructure:"base_delay_max"` // seconds
	ViewportWidth   int     `mapstructure:"viewport_width" validate:"gt=0"`
	ViewportHeight  int     `mapstructure:"viewport_height" validate:"gt=0"`
	DebugStealth    bool    `mapstructure:"debug_stealth"`
}

// BrowserConfig controls the Chromium launch
type BrowserConfig struct {
	Headless bool   `mapstructure:"headless"`
	Bin      string `mapstructure:"bin"` // empty means launcher lookup
}

// NavigationConfig is the retry policy for page loads
type NavigationConfig struct {
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout" validate:"gt=0"`
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"gte=1"`
	BackoffInitial  time.Duration `mapstructure:"backoff_initial" validate:"gt=0"`
	BackoffMax      time.Duration `mapstructure:"backoff_max" validate:"gt=0"`
	Settle          time.Duration `mapstructure:"settle"`
}

// DownloadConfig controls the download drop zone and poll cadence
type DownloadConfig struct {
	Dir         string        `mapstructure:"dir" validate:"required"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
}

// LocatorsConfig holds the XPath locators of the ads dashboard.
// Suffixes are joined onto the base app path with ElementPath.
type LocatorsConfig struct {
	LoginLink       string `mapstructure:"login_link" validate:"required"`
	UsernameInput   string `mapstructure:"username_input" validate:"required"`
	PasswordInput   string `mapstructure:"password_input" validate:"required"`
	LoginSubmit     string `mapstructure:"login_submit" validate:"required"`
	Logo            string `mapstructure:"logo" validate:"required"`
	BaseApp         string `mapstructure:"base_app" validate:"required"`
	BreakdownButton string `mapstructure:"breakdown_button" validate:"required"`
	BreakdownDate   string `mapstructure:"breakdown_date" validate:"required"`
	CalendarButton  string `mapstructure:"calendar_button" validate:"required"`
	CalendarTable   string `mapstructure:"calendar_table" validate:"required"`
	CalendarRoot    string `mapstructure:"calendar_root" validate:"required"`
	CalendarMonth   string `mapstructure:"calendar_month" validate:"required"` // contains %d for left/right
	CalendarNav     string `mapstructure:"calendar_nav" validate:"required"`   // contains %d for previous/next
	CalendarApply   string `mapstructure:"calendar_apply" validate:"required"`
	ExportButton    string `mapstructure:"export_button" validate:"required"`
}

// LimitsConfig holds rate limiting configuration
type LimitsConfig struct {
	MaxExportsPerDay int `mapstructure:"max_exports_per_day" validate:"gte=0"` // 0 disables the limit
}

// DatabaseConfig selects the run history store
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres mysql"`
	Path   string `mapstructure:"path"` // sqlite file
	DSN    string `mapstructure:"dsn"`  // postgres/mysql
}

// PipelineConfig describes the external processing pipeline
type PipelineConfig struct {
	Command string        `mapstructure:"command"`
	Args    string        `mapstructure:"args"`
	Dir     string        `mapstructure:"dir"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config represents the application configuration
type Config struct {
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`

	Reddit struct {
		BaseURL string `mapstructure:"base_url" validate:"required,url"`
	} `mapstructure:"reddit"`

	Browser    BrowserConfig    `mapstructure:"browser"`
	Navigation NavigationConfig `mapstructure:"navigation"`
	Download   DownloadConfig   `mapstructure:"download"`
	Stealth    StealthConfig    `mapstructure:"stealth"`
	Locators   LocatorsConfig   `mapstructure:"locators"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`

	Session struct {
		CookiesPath string `mapstructure:"cookies_path"`
	} `mapstructure:"session"`
}
