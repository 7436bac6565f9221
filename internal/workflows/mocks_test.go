package workflows

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"redads-automation/internal/core"
	"redads-automation/internal/tabular"
)

type mockBrowser struct{ mock.Mock }

var _ core.BrowserPort = (*mockBrowser)(nil)

func (m *mockBrowser) Initialize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBrowser) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *mockBrowser) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *mockBrowser) Type(ctx context.Context, selector string, text string) error {
	return m.Called(ctx, selector, text).Error(0)
}

func (m *mockBrowser) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	return m.Called(ctx, selector, timeout).Error(0)
}

func (m *mockBrowser) GetText(ctx context.Context, selector string) (string, error) {
	args := m.Called(ctx, selector)
	return args.String(0), args.Error(1)
}

func (m *mockBrowser) ElementExists(ctx context.Context, selector string) (bool, error) {
	args := m.Called(ctx, selector)
	return args.Bool(0), args.Error(1)
}

func (m *mockBrowser) GetCurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockBrowser) Pause(ctx context.Context, minSeconds, maxSeconds float64) {
	m.Called(ctx, minSeconds, maxSeconds)
}

func (m *mockBrowser) SaveCookies(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *mockBrowser) LoadCookies(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *mockBrowser) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockRepository struct{ mock.Mock }

var _ core.RepositoryPort = (*mockRepository)(nil)

func (m *mockRepository) CreateRun(ctx context.Context, run *core.ReportRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockRepository) CompleteRun(ctx context.Context, runID, status, fileName string, rowCount int, runErr error) error {
	return m.Called(ctx, runID, status, fileName, rowCount, runErr).Error(0)
}

func (m *mockRepository) GetRunsByDateRange(ctx context.Context, start, end time.Time) ([]*core.ReportRun, error) {
	args := m.Called(ctx, start, end)
	runs, _ := args.Get(0).([]*core.ReportRun)
	return runs, args.Error(1)
}

func (m *mockRepository) SaveRows(ctx context.Context, runID string, table *tabular.Table) error {
	return m.Called(ctx, runID, table).Error(0)
}

func (m *mockRepository) CreateHistory(ctx context.Context, history *core.History) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockRepository) GetTodayActionCount(ctx context.Context, actionType string) (int64, error) {
	args := m.Called(ctx, actionType)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) CanPerformAction(ctx context.Context, actionType string, dailyLimit int) (bool, error) {
	args := m.Called(ctx, actionType, dailyLimit)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockRepository) Close() error {
	return m.Called().Error(0)
}

type mockDownloads struct{ mock.Mock }

func (m *mockDownloads) Wait(ctx context.Context) (*tabular.Table, string, error) {
	args := m.Called(ctx)
	table, _ := args.Get(0).(*tabular.Table)
	return table, args.String(1), args.Error(2)
}

// dashboard locators as shipped in the default config
const (
	baseApp      = `//*[@id="app"]/div/div[2]/div[2]/`
	calendarRoot = `//*[@id="app"]/div/div[2]/div[2]/div[1]/div[2]/div/div[2]/table/tbody/tr[1]/td[1]/div/div/div/div`
	leftMonth    = calendarRoot + "[2]/div[1]/div[1]/div"
	rightMonth   = calendarRoot + "[2]/div[2]/div[1]/div"
	previousNav  = calendarRoot + "[1]/span[1]"
	nextNav      = calendarRoot + "[1]/span[2]"
)

func testConfig(t *testing.T) *core.Config {
	cfg := &core.Config{
		Username: "ads-user",
		Password: "secret",
	}
	cfg.Reddit.BaseURL = "https://ads.reddit.com"
	cfg.Session.CookiesPath = filepath.Join(t.TempDir(), "cookies.json")
	cfg.Download.Dir = filepath.Join(t.TempDir(), "tmp")
	cfg.Locators = core.LocatorsConfig{
		LoginLink:       `//*[@id="Content"]/h2/a`,
		UsernameInput:   `//*[@id="loginUsername"]`,
		PasswordInput:   `//*[@id="loginPassword"]`,
		LoginSubmit:     "/html/body/div/div/div[2]/div/form/fieldset[5]/button",
		Logo:            `//*[@id="app"]/div/div[1]/div/a/img`,
		BaseApp:         baseApp,
		BreakdownButton: "div[3]/div[1]/div[1]/div/div[3]/div/div/div/div/div[1]",
		BreakdownDate:   "/html/body/div[6]/div/ul/li[1]",
		CalendarButton:  "div[1]/div[2]/div/div",
		CalendarTable:   "[2]/table/tbody/tr",
		CalendarRoot:    "[1]/td[1]/div/div/div/div",
		CalendarMonth:   "[2]/div[%d]/div[1]/div",
		CalendarNav:     "[1]/span[%d]",
		CalendarApply:   "[2]/td/div/div/button[2]/span",
		ExportButton:    "div[1]/div[1]/div/div[3]/button",
	}
	return cfg
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
