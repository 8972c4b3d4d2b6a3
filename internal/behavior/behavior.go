package behavior

import (
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiteshvirani/email.scrapping/internal/config"
)

// ErrNotFound is returned by Page.Box when no element matches the selector.
var ErrNotFound = errors.New("element not found")

// Point is a viewport coordinate in CSS pixels.
type Point struct {
	X, Y float64
}

// Box is an element's bounding rectangle relative to the viewport.
type Box struct {
	X, Y, Width, Height float64
}

func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Page is the slice of a browser tab the simulator drives. Implementations
// dispatch real input events; they do not sleep.
type Page interface {
	Viewport() (width, height int)
	MouseMove(x, y float64) error
	MouseClick(x, y float64) error
	Wheel(dx, dy float64) error
	TypeChar(r rune) error
	Box(selector string) (Box, error)
	Click(selector string) error
	ScrollIntoView(selector string) error
	LinkBoxes(limit int) ([]Box, error)
}

// Timing carries the configured delay ranges.
type Timing struct {
	PageMin, PageMax     time.Duration
	ActionMin, ActionMax time.Duration
	TypingMin, TypingMax time.Duration
	ScrollMin, ScrollMax int
}

func TimingFrom(cfg config.Config) Timing {
	t := Timing{ScrollMin: cfg.MinScroll, ScrollMax: cfg.MaxScroll}
	t.PageMin, t.PageMax = cfg.PageDelayRange()
	t.ActionMin, t.ActionMax = cfg.ActionDelayRange()
	t.TypingMin, t.TypingMax = cfg.TypingDelayRange()
	return t
}

const (
	minPageDelay      = time.Second
	pageJitter        = 500 * time.Millisecond
	thinkingChance    = 0.05
	bigraphSpeedup    = 0.7
	controlSpread     = 100
	clickOffsetRatio  = 0.2
	scrollStepJitter  = 30
	idleMouseMargin   = 100
	hoverCandidates   = 10
	fallbackViewportW = 1920
	fallbackViewportH = 1080
)

var commonBigraphs = map[string]struct{}{
	"th": {}, "he": {}, "in": {}, "er": {}, "an": {}, "re": {}, "on": {},
}

type Direction int

const (
	Down Direction = iota
	Up
)

// Simulator paces and shapes browser input. It is owned by one session
// controller and is not safe for concurrent use.
type Simulator struct {
	timing Timing
	rnd    *rand.Rand
	sleep  func(time.Duration)
	log    zerolog.Logger
}

type Option func(*Simulator)

func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rnd = r }
}

// WithSleep replaces time.Sleep. Tests pass a recorder.
func WithSleep(fn func(time.Duration)) Option {
	return func(s *Simulator) { s.sleep = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

func New(timing Timing, opts ...Option) *Simulator {
	s := &Simulator{
		timing: timing,
		sleep:  time.Sleep,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

func (s *Simulator) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rnd.Int63n(int64(hi-lo)+1))
}

func (s *Simulator) intBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rnd.Intn(hi-lo+1)
}

func (s *Simulator) floatBetween(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rnd.Float64()
}

// beta22 draws from Beta(2,2): the median of three independent uniforms has
// exactly that distribution.
func (s *Simulator) beta22() float64 {
	u := []float64{s.rnd.Float64(), s.rnd.Float64(), s.rnd.Float64()}
	sort.Float64s(u)
	return u[1]
}

// NextPageDelay draws a between-pages delay without sleeping.
func (s *Simulator) NextPageDelay() time.Duration {
	span := float64(s.timing.PageMax - s.timing.PageMin)
	d := s.timing.PageMin + time.Duration(span*s.beta22())
	d += time.Duration(s.floatBetween(-1, 1) * float64(pageJitter))
	if d < minPageDelay {
		d = minPageDelay
	}
	return d
}

// PageDelay sleeps for a reading-length pause and returns its length.
func (s *Simulator) PageDelay() time.Duration {
	d := s.NextPageDelay()
	s.sleep(d)
	return d
}

// ActionDelay sleeps for a short pause between UI actions.
func (s *Simulator) ActionDelay() time.Duration {
	d := s.uniform(s.timing.ActionMin, s.timing.ActionMax)
	s.sleep(d)
	return d
}

// TypingDelays returns the pause after each rune of text.
func (s *Simulator) TypingDelays(text string) []time.Duration {
	runes := []rune(text)
	lo, hi := s.timing.TypingMin, s.timing.TypingMax
	out := make([]time.Duration, len(runes))
	for i := range runes {
		d := s.uniform(lo, hi)
		if i > 0 {
			if _, ok := commonBigraphs[string(runes[i-1:i+1])]; ok {
				d = lo + time.Duration(float64(d-lo)*bigraphSpeedup)
			}
		}
		if s.rnd.Float64() < thinkingChance {
			d += s.uniform(200*time.Millisecond, 500*time.Millisecond)
		}
		out[i] = d
	}
	return out
}

// Type sends text one rune at a time with human pacing.
func (s *Simulator) Type(p Page, text string) error {
	delays := s.TypingDelays(text)
	for i, r := range []rune(text) {
		if err := p.TypeChar(r); err != nil {
			return err
		}
		s.sleep(delays[i])
	}
	return nil
}

// Step is one pointer position along a path and the pause after it.
type Step struct {
	Point
	Delay time.Duration
}

// Path plans a quadratic Bézier pointer trajectory from a random point in the
// viewport to target. The last step lands exactly on target.
func (s *Simulator) Path(width, height int, target Point) []Step {
	start := Point{
		X: float64(s.intBetween(0, width)),
		Y: float64(s.intBetween(0, height)),
	}
	control := Point{
		X: (start.X+target.X)/2 + float64(s.intBetween(-controlSpread, controlSpread)),
		Y: (start.Y+target.Y)/2 + float64(s.intBetween(-controlSpread, controlSpread)),
	}
	steps := s.intBetween(15, 30)

	path := make([]Step, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		a, b, c := (1-t)*(1-t), 2*(1-t)*t, t*t
		pt := Point{
			X: a*start.X + b*control.X + c*target.X,
			Y: a*start.Y + b*control.Y + c*target.Y,
		}
		if i == steps {
			pt = target
		}
		speed := 1 - 4*(t-0.5)*(t-0.5)
		delay := 10*time.Millisecond + time.Duration(float64(20*time.Millisecond)*(1-speed))
		path = append(path, Step{Point: pt, Delay: delay})
	}
	return path
}

func viewportOf(p Page) (int, int) {
	w, h := p.Viewport()
	if w <= 0 || h <= 0 {
		return fallbackViewportW, fallbackViewportH
	}
	return w, h
}

// MoveTo glides the pointer to target. Dispatch failures end the movement
// quietly.
func (s *Simulator) MoveTo(p Page, target Point) {
	w, h := viewportOf(p)
	for _, st := range s.Path(w, h, target) {
		if err := p.MouseMove(st.X, st.Y); err != nil {
			s.log.Debug().Err(err).Msg("Mouse move failed")
			return
		}
		s.sleep(st.Delay)
	}
}

// Click moves to a point near the element's center and clicks it. When the
// shaped click cannot be performed it falls back to a direct click; only a
// failing fallback is reported.
func (s *Simulator) Click(p Page, selector string) error {
	box, err := p.Box(selector)
	if err != nil {
		s.log.Debug().Err(err).Str("selector", selector).Msg("No bounding box, clicking directly")
		return p.Click(selector)
	}

	c := box.Center()
	target := Point{
		X: c.X + s.floatBetween(-clickOffsetRatio, clickOffsetRatio)*box.Width,
		Y: c.Y + s.floatBetween(-clickOffsetRatio, clickOffsetRatio)*box.Height,
	}
	s.MoveTo(p, target)
	s.sleep(s.uniform(50*time.Millisecond, 150*time.Millisecond))

	if err := p.MouseClick(target.X, target.Y); err != nil {
		s.log.Debug().Err(err).Str("selector", selector).Msg("Mouse click failed, clicking directly")
		return p.Click(selector)
	}
	s.sleep(s.uniform(100*time.Millisecond, 300*time.Millisecond))
	return nil
}

// Scroll wheels the page in 3 to 8 uneven steps. amount <= 0 draws a
// distance from the configured scroll range.
func (s *Simulator) Scroll(p Page, dir Direction, amount int) {
	if amount <= 0 {
		amount = s.intBetween(s.timing.ScrollMin, s.timing.ScrollMax)
	}
	if dir == Up {
		amount = -amount
	}
	steps := s.intBetween(3, 8)
	per := amount / steps
	for i := 0; i < steps; i++ {
		delta := per + s.intBetween(-scrollStepJitter, scrollStepJitter)
		if err := p.Wheel(0, float64(delta)); err != nil {
			s.log.Debug().Err(err).Msg("Wheel event failed")
			return
		}
		s.sleep(s.uniform(50*time.Millisecond, 200*time.Millisecond))
	}
	s.sleep(s.uniform(300*time.Millisecond, time.Second))
}

// ScrollTo brings an off-screen element toward the middle of the viewport
// with a natural scroll, then lets the page finish the job.
func (s *Simulator) ScrollTo(p Page, selector string) {
	box, err := p.Box(selector)
	if err == nil {
		_, h := viewportOf(p)
		visible := box.Y >= 0 && box.Y+box.Height <= float64(h)
		if !visible {
			delta := box.Y - float64(h)/2
			if delta > 100 {
				s.Scroll(p, Down, int(delta))
			} else if delta < -100 {
				s.Scroll(p, Up, int(-delta))
			}
		}
	}
	if err := p.ScrollIntoView(selector); err != nil {
		s.log.Debug().Err(err).Str("selector", selector).Msg("Scroll into view failed")
	}
}

// IdleInteraction performs one or two distinct filler actions, each followed
// by an action delay.
func (s *Simulator) IdleInteraction(p Page) {
	actions := []func(Page){s.idleScroll, s.idleMouse, s.idleHover}
	n := s.intBetween(1, 2)
	for _, i := range s.rnd.Perm(len(actions))[:n] {
		actions[i](p)
		s.ActionDelay()
	}
}

func (s *Simulator) idleScroll(p Page) {
	dir := Down
	if s.rnd.Intn(2) == 0 {
		dir = Up
	}
	s.Scroll(p, dir, s.intBetween(50, 200))
}

func (s *Simulator) idleMouse(p Page) {
	w, h := viewportOf(p)
	x := s.intBetween(idleMouseMargin, max(idleMouseMargin, w-idleMouseMargin))
	y := s.intBetween(idleMouseMargin, max(idleMouseMargin, h-idleMouseMargin))
	if err := p.MouseMove(float64(x), float64(y)); err != nil {
		s.log.Debug().Err(err).Msg("Idle mouse move failed")
	}
}

func (s *Simulator) idleHover(p Page) {
	boxes, err := p.LinkBoxes(hoverCandidates)
	if err != nil || len(boxes) == 0 {
		return
	}
	c := boxes[s.rnd.Intn(len(boxes))].Center()
	if err := p.MouseMove(c.X, c.Y); err != nil {
		s.log.Debug().Err(err).Msg("Hover failed")
		return
	}
	s.sleep(s.uniform(100*time.Millisecond, 300*time.Millisecond))
}
