package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"redads-automation/internal/core"
)

const loginFormTimeout = 10 * time.Second

// AuthWorkflow implements the authentication workflow
type AuthWorkflow struct {
	browser core.BrowserPort
	repo    core.RepositoryPort
	config  *core.Config
	logger  *zap.Logger
}

// NewAuthWorkflow creates a new authentication workflow
func NewAuthWorkflow(browser core.BrowserPort, repo core.RepositoryPort, config *core.Config, logger *zap.Logger) *AuthWorkflow {
	return &AuthWorkflow{
		browser: browser,
		repo:    repo,
		config:  config,
		logger:  logger,
	}
}

// Authenticate opens the dashboard and signs in unless a saved session is
// still valid
func (a *AuthWorkflow) Authenticate(ctx context.Context) error {
	// Try to load existing cookies first
	if err := a.browser.LoadCookies(ctx, a.config.Session.CookiesPath); err != nil {
		a.logger.Warn("Failed to load cookies, will perform fresh login", zap.Error(err))
	}

	if err := a.browser.Navigate(ctx, a.config.Reddit.BaseURL); err != nil {
		return err
	}

	needsLogin, err := a.browser.ElementExists(ctx, a.config.Locators.LoginLink)
	if err != nil {
		return fmt.Errorf("failed to check authentication status: %w", err)
	}
	if !needsLogin {
		a.logger.Info("Already authenticated, using existing session")
		return nil
	}

	if err := a.SignIn(ctx); err != nil {
		return err
	}

	if err := a.browser.SaveCookies(ctx, a.config.Session.CookiesPath); err != nil {
		// the run can continue without a saved session
		a.logger.Warn("Failed to save cookies", zap.Error(err))
	}

	if err := a.repo.CreateHistory(ctx, &core.History{
		ActionType: core.ActionLogin,
		Details:    a.config.Username,
		Timestamp:  time.Now(),
	}); err != nil {
		a.logger.Warn("Failed to record login", zap.Error(err))
	}

	a.logger.Info("Authentication successful")
	return nil
}

// SignIn fills the login form and lands on the dashboard. If the browser
// ends up elsewhere the logo is clicked, then the base URL is loaded as a
// last resort.
func (a *AuthWorkflow) SignIn(ctx context.Context) error {
	a.logger.Info("Signing in")
	loc := a.config.Locators

	if err := a.browser.Click(ctx, loc.LoginLink); err != nil {
		return fmt.Errorf("failed to open login form: %w", err)
	}
	a.browser.Pause(ctx, clickSettle, clickSettle*1.25)

	if err := a.browser.WaitForElement(ctx, loc.UsernameInput, loginFormTimeout); err != nil {
		return fmt.Errorf("login form not found: %w", err)
	}

	if err := a.browser.Type(ctx, loc.UsernameInput, a.config.Username); err != nil {
		return fmt.Errorf("failed to type username: %w", err)
	}
	a.browser.Pause(ctx, 0.5, 1.0)

	if err := a.browser.Type(ctx, loc.PasswordInput, a.config.Password); err != nil {
		return fmt.Errorf("failed to type password: %w", err)
	}
	a.browser.Pause(ctx, 0.5, 1.0)

	if err := a.browser.Click(ctx, loc.LoginSubmit); err != nil {
		return fmt.Errorf("failed to click submit button: %w", err)
	}
	a.browser.Pause(ctx, 5.0, 6.0)

	onDashboard, err := a.onBaseURL(ctx)
	if err != nil {
		return err
	}
	if onDashboard {
		return nil
	}

	a.logger.Warn("Unexpected page after login, clicking logo")
	if err := a.browser.Click(ctx, loc.Logo); err != nil {
		return fmt.Errorf("failed to click logo: %w", err)
	}
	a.browser.Pause(ctx, 5.0, 6.0)

	onDashboard, err = a.onBaseURL(ctx)
	if err != nil {
		return err
	}
	if !onDashboard {
		return a.browser.Navigate(ctx, a.config.Reddit.BaseURL)
	}
	return nil
}

func (a *AuthWorkflow) onBaseURL(ctx context.Context) (bool, error) {
	currentURL, err := a.browser.GetCurrentURL(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get current URL: %w", err)
	}

	same := strings.TrimSuffix(currentURL, "/") == strings.TrimSuffix(a.config.Reddit.BaseURL, "/")
	if !same {
		a.logger.Debug("URL differs from base", zap.String("url", currentURL))
	}
	return same, nil
}
