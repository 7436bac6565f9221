package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"redads-automation/internal/core"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "REDAPI"

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// report problems with config keys rather than Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Load loads configuration from a JSON config file, an optional .env file
// and REDAPI_* environment variables
func Load(configPath string) (*core.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file %s not found: %w", configPath, err)
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("redconfig")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no file on the search path: defaults and env vars only
	}

	cfg := &core.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if username := os.Getenv(EnvPrefix + "_USERNAME"); username != "" {
		cfg.Username = username
	}
	if password := os.Getenv(EnvPrefix + "_PASSWORD"); password != "" {
		cfg.Password = password
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Credentials (must come from the config file or env)
	v.SetDefault("username", "")
	v.SetDefault("password", "")

	v.SetDefault("reddit.base_url", "https://ads.reddit.com")

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.bin", "")

	v.SetDefault("navigation.page_load_timeout", 60*time.Second)
	v.SetDefault("navigation.max_attempts", 3)
	v.SetDefault("navigation.backoff_initial", 2*time.Second)
	v.SetDefault("navigation.backoff_max", 30*time.Second)
	v.SetDefault("navigation.settle", 5*time.Second)

	// 100 x 5s, a little over eight minutes
	v.SetDefault("download.dir", "tmp")
	v.SetDefault("download.max_attempts", 100)
	v.SetDefault("download.interval", 5*time.Second)

	v.SetDefault("stealth.typing_speed_min", 40)
	v.SetDefault("stealth.typing_speed_max", 80)
	v.SetDefault("stealth.typo_probability", 0.0)
	v.SetDefault("stealth.mouse_speed_min", 0.5)
	v.SetDefault("stealth.mouse_speed_max", 1.5)
	v.SetDefault("stealth.overshoot_chance", 0.3)
	v.SetDefault("stealth.base_delay_min", 1.5)
	v.SetDefault("stealth.base_delay_max", 2.5)
	v.SetDefault("stealth.viewport_width", 1920)
	v.SetDefault("stealth.viewport_height", 1080)
	v.SetDefault("stealth.debug_stealth", false)

	// Dashboard locators (the app is a React SPA without stable ids, so
	// most of these are positional and break when the layout changes)
	v.SetDefault("locators.login_link", `//*[@id="Content"]/h2/a`)
	v.SetDefault("locators.username_input", `//*[@id="loginUsername"]`)
	v.SetDefault("locators.password_input", `//*[@id="loginPassword"]`)
	v.SetDefault("locators.login_submit", "/html/body/div/div/div[2]/div/form/fieldset[5]/button")
	v.SetDefault("locators.logo", `//*[@id="app"]/div/div[1]/div/a/img`)
	v.SetDefault("locators.base_app", `//*[@id="app"]/div/div[2]/div[2]/`)
	v.SetDefault("locators.breakdown_button", "div[3]/div[1]/div[1]/div/div[3]/div/div/div/div/div[1]")
	v.SetDefault("locators.breakdown_date", "/html/body/div[6]/div/ul/li[1]")
	v.SetDefault("locators.calendar_button", "div[1]/div[2]/div/div")
	v.SetDefault("locators.calendar_table", "[2]/table/tbody/tr")
	v.SetDefault("locators.calendar_root", "[1]/td[1]/div/div/div/div")
	v.SetDefault("locators.calendar_month", "[2]/div[%d]/div[1]/div")
	v.SetDefault("locators.calendar_nav", "[1]/span[%d]")
	v.SetDefault("locators.calendar_apply", "[2]/td/div/div/button[2]/span")
	v.SetDefault("locators.export_button", "div[1]/div[1]/div/div[3]/button")

	v.SetDefault("limits.max_exports_per_day", 20)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/redapi.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("session.cookies_path", "data/cookies.json")

	v.SetDefault("pipeline.command", "")
	v.SetDefault("pipeline.args", "--api all --analyze")
	v.SetDefault("pipeline.dir", ".")
	v.SetDefault("pipeline.timeout", time.Duration(0))
}

// validateConfig validates that required configuration fields are set
func validateConfig(cfg *core.Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return describe(verrs[0])
		}
		return err
	}

	if cfg.Stealth.TypingSpeedMax < cfg.Stealth.TypingSpeedMin {
		return fmt.Errorf("stealth.typing_speed_max must be >= stealth.typing_speed_min")
	}
	if cfg.Navigation.BackoffMax < cfg.Navigation.BackoffInitial {
		return fmt.Errorf("navigation.backoff_max must be >= navigation.backoff_initial")
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required for the sqlite driver")
	}
	if cfg.Database.Driver != "sqlite" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the %s driver", cfg.Database.Driver)
	}
	return nil
}

func describe(fe validator.FieldError) error {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")

	switch fe.Tag() {
	case "required":
		if key == "username" || key == "password" {
			return fmt.Errorf("%s is required (set via config or %s_%s env var)",
				key, EnvPrefix, strings.ToUpper(key))
		}
		return fmt.Errorf("%s is required", key)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %v", key, fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s is invalid (%s %s), got %v", key, fe.Tag(), fe.Param(), fe.Value())
	}
}
