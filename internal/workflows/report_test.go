package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"redads-automation/internal/core"
)

func clickedSelectors(b *mockBrowser) []string {
	var selectors []string
	for _, call := range b.Calls {
		if call.Method == "Click" {
			selectors = append(selectors, call.Arguments.String(1))
		}
	}
	return selectors
}

func countClicks(b *mockBrowser, selector string) int {
	n := 0
	for _, s := range clickedSelectors(b) {
		if s == selector {
			n++
		}
	}
	return n
}

func newCalendarBrowser(left, right string) *mockBrowser {
	b := &mockBrowser{}
	b.On("Click", mock.Anything, mock.Anything).Return(nil)
	b.On("Pause", mock.Anything, mock.Anything, mock.Anything).Return()
	b.On("GetText", mock.Anything, leftMonth).Return(left, nil)
	b.On("GetText", mock.Anything, rightMonth).Return(right, nil)
	return b
}

func TestCreateReportClickSequence(t *testing.T) {
	cfg := testConfig(t)
	b := newCalendarBrowser("March 2024", "April 2024")
	r := NewReportWorkflow(b, cfg, zaptest.NewLogger(t))

	err := r.CreateReport(context.Background(), core.DateRange{
		Start: date(2024, time.March, 10),
		End:   date(2024, time.April, 20),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		`//*[@id="app"]/div/div[2]/div[2]/div[3]/div[1]/div[1]/div/div[3]/div/div/div/div/div[1]`,
		"/html/body/div[6]/div/ul/li[1]",
		`//*[@id="app"]/div/div[2]/div[2]/div[1]/div[2]/div/div`,
		"//div[@aria-label='Sun Mar 10 2024']",
		"//div[@aria-label='Sat Apr 20 2024']",
		`//*[@id="app"]/div/div[2]/div[2]/div[1]/div[2]/div/div[2]/table/tbody/tr[2]/td/div/div/button[2]/span`,
		`//*[@id="app"]/div/div[2]/div[2]/div[1]/div[1]/div/div[3]/button`,
	}, clickedSelectors(b))
	assert.DirExists(t, cfg.Download.Dir)
	b.AssertNumberOfCalls(t, "GetText", 4)
}

func TestSetDatesVisibleMonthNeedsNoPaging(t *testing.T) {
	cfg := testConfig(t)
	b := newCalendarBrowser("March 2024", "April 2024")
	r := NewReportWorkflow(b, cfg, zaptest.NewLogger(t))

	base := core.NewElementPath(cfg.Locators.BaseApp)
	require.NoError(t, r.SetDates(context.Background(), date(2024, time.March, 1), date(2024, time.April, 30), base))

	assert.Zero(t, countClicks(b, previousNav))
	assert.Zero(t, countClicks(b, nextNav))
}

func TestSetDatesPagesBackExactly(t *testing.T) {
	cfg := testConfig(t)
	b := newCalendarBrowser("March 2024", "April 2024")
	r := NewReportWorkflow(b, cfg, zaptest.NewLogger(t))

	base := core.NewElementPath(cfg.Locators.BaseApp)
	require.NoError(t, r.SetDates(context.Background(), date(2024, time.January, 10), date(2024, time.April, 2), base))

	assert.Equal(t, 2, countClicks(b, previousNav))
	assert.Zero(t, countClicks(b, nextNav))

	// paging happens before the date cell is clicked
	clicks := clickedSelectors(b)
	assert.Equal(t, []string{previousNav, previousNav, "//div[@aria-label='Wed Jan 10 2024']"}, clicks[1:4])
}

func TestSetDatesPagesForward(t *testing.T) {
	cfg := testConfig(t)
	b := newCalendarBrowser("March 2024", "April 2024")
	r := NewReportWorkflow(b, cfg, zaptest.NewLogger(t))

	base := core.NewElementPath(cfg.Locators.BaseApp)
	require.NoError(t, r.SetDates(context.Background(), date(2024, time.April, 1), date(2024, time.June, 5), base))

	assert.Zero(t, countClicks(b, previousNav))
	assert.Equal(t, 2, countClicks(b, nextNav))
}

func TestSetDatesBadMonthLabel(t *testing.T) {
	cfg := testConfig(t)
	b := newCalendarBrowser("Loading...", "April 2024")
	r := NewReportWorkflow(b, cfg, zaptest.NewLogger(t))

	err := r.SetDates(context.Background(), date(2024, time.April, 1), date(2024, time.April, 2),
		core.NewElementPath(cfg.Locators.BaseApp))
	assert.ErrorContains(t, err, "unexpected calendar month label")
}

func TestSetBreakdownsLocatorNotFound(t *testing.T) {
	cfg := testConfig(t)
	b := &mockBrowser{}
	b.On("Click", mock.Anything, mock.Anything).Return(errors.New("element not found"))
	r := NewReportWorkflow(b, cfg, zaptest.NewLogger(t))

	err := r.SetBreakdowns(context.Background(), core.NewElementPath(cfg.Locators.BaseApp))
	assert.ErrorContains(t, err, "failed to open breakdowns")
	b.AssertNotCalled(t, "Pause", mock.Anything, mock.Anything, mock.Anything)
}
