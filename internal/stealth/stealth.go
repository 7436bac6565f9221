package stealth

import (
	"context"

	"redads-automation/internal/core"
)

// Stealth coordinates the mouse, keyboard and jitter components used by
// the browser layer to make dashboard interactions look hand-driven
type Stealth struct {
	mouse    *Mouse
	keyboard *Keyboard
	jitter   *Jitter
	config   *core.StealthConfig
}

// NewStealth creates a new Stealth instance with the given configuration
func NewStealth(config *core.StealthConfig) *Stealth {
	return &Stealth{
		mouse: NewMouse(&MouseConfig{
			SpeedMin:        config.MouseSpeedMin,
			SpeedMax:        config.MouseSpeedMax,
			OvershootChance: config.OvershootChance,
		}),
		keyboard: NewKeyboard(),
		jitter:   NewJitter(),
		config:   config,
	}
}

// Pause sleeps for a random duration in [minSeconds, maxSeconds].
// Zero bounds fall back to the configured base delay.
func (s *Stealth) Pause(ctx context.Context, minSeconds, maxSeconds float64) {
	if minSeconds == 0 && maxSeconds == 0 {
		minSeconds = s.config.BaseDelayMin
		maxSeconds = s.config.BaseDelayMax
	}
	s.jitter.SleepRange(ctx, minSeconds, maxSeconds)
}

// MousePath returns the points to move through from start to end
func (s *Stealth) MousePath(startX, startY, endX, endY float64) []Point {
	return s.mouse.Path(Point{X: startX, Y: startY}, Point{X: endX, Y: endY})
}

// TypingActions returns the keystrokes for text at the configured cadence
func (s *Stealth) TypingActions(ctx context.Context, text string) ([]KeyAction, error) {
	return s.keyboard.Actions(ctx, text, s.config.TypingSpeedMin, s.config.TypingSpeedMax, s.config.TypoProbability)
}

// Jitter exposes the shared random source for small timing decisions
func (s *Stealth) Jitter() *Jitter {
	return s.jitter
}
