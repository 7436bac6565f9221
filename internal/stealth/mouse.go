package stealth

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Mouse generates cubic Bézier paths between two points, optionally
// overshooting the target and correcting back
type Mouse struct {
	config *MouseConfig
	mu     sync.Mutex
	rng    *rand.Rand
}

// MouseConfig holds configuration for mouse behavior
type MouseConfig struct {
	SpeedMin        float64 // Minimum speed multiplier
	SpeedMax        float64 // Maximum speed multiplier
	OvershootChance float64 // Probability of overshooting target (0.0-1.0)
}

// Point represents a 2D coordinate
type Point struct {
	X, Y float64
}

// NewMouse creates a new Mouse instance
func NewMouse(config *MouseConfig) *Mouse {
	return &Mouse{
		config: config,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Path returns the points from start to end. The last point is always end.
func (m *Mouse) Path(start, end Point) []Point {
	m.mu.Lock()
	defer m.mu.Unlock()

	distance := math.Hypot(end.X-start.X, end.Y-start.Y)
	if distance < 1.0 {
		return []Point{end}
	}

	target := end
	overshoot := m.rng.Float64() < m.config.OvershootChance
	if overshoot {
		extra := distance * (0.1 + m.rng.Float64()*0.2)
		angle := math.Atan2(end.Y-start.Y, end.X-start.X)
		target = Point{X: end.X + extra*math.Cos(angle), Y: end.Y + extra*math.Sin(angle)}
	}

	speed := m.config.SpeedMin
	if m.config.SpeedMax > m.config.SpeedMin {
		speed += m.rng.Float64() * (m.config.SpeedMax - m.config.SpeedMin)
	}
	if speed <= 0 {
		speed = 1
	}
	steps := clamp(int(distance/(10.0*speed)), 10, 100)

	points := bezier(m.controlPoints(start, target), steps)
	if overshoot {
		correction := clamp(int(distance*0.2), 5, 30)
		points = append(points, bezier(m.controlPoints(target, end), correction)...)
	}
	return points
}

// controlPoints bends the segment along its perpendicular by 20-50% of its length
func (m *Mouse) controlPoints(start, end Point) [4]Point {
	dx := end.X - start.X
	dy := end.Y - start.Y
	px, py := -dy, dx

	if l := math.Hypot(px, py); l > 0 {
		scale := (m.rng.Float64()*0.3 + 0.2) * math.Hypot(dx, dy)
		px = px / l * scale
		py = py / l * scale
	}

	f1 := 0.3 + m.rng.Float64()*0.4
	f2 := 0.3 + m.rng.Float64()*0.4
	return [4]Point{
		start,
		{X: start.X + px*f1, Y: start.Y + py*f1},
		{X: end.X - px*f2, Y: end.Y - py*f2},
		end,
	}
}

// bezier samples B(t) = (1-t)³P₀ + 3(1-t)²tP₁ + 3(1-t)t²P₂ + t³P₃
func bezier(cp [4]Point, steps int) []Point {
	if steps < 2 {
		steps = 2
	}
	points := make([]Point, steps)
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)
		mt := 1 - t
		a, b, c, d := mt*mt*mt, 3*mt*mt*t, 3*mt*t*t, t*t*t
		points[i] = Point{
			X: a*cp[0].X + b*cp[1].X + c*cp[2].X + d*cp[3].X,
			Y: a*cp[0].Y + b*cp[1].Y + c*cp[2].Y + d*cp[3].Y,
		}
	}
	return points
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
