// Package screen implements the screen and GPU components: a shared,
// lockable pixel-grid buffer (the screen, addressed by one or more
// GPUs) plus the GPU component that draws into a bound screen, grounded in the
// nn_screen/nn_gpuControl structs in neonucleus.h. Non-goal: actual
// pixel *rendering* to a display is out of scope; this package only
// tracks the addressable state a guest program can query and mutate.
package screen

import (
	"sync"

	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/resource"
	"github.com/speedy-lex/neonucleus/value"
)

// Char is one cell of the screen's pixel grid, mirroring nn_scrchr_t.
type Char struct {
	Codepoint   rune
	FG, BG      int
	FGIsPalette bool
	BGIsPalette bool
}

// Screen is the addressable state of a screen component: resolution,
// viewport, palette, depth, pixel grid, and the set of keyboards bound
// to it. Accessors do not lock; callers hold Lock/Unlock around them,
// as the screen and GPU component methods do.
type Screen struct {
	mu sync.Mutex

	maxWidth, maxHeight int
	maxDepth            int
	width, height        int
	viewWidth, viewHeight int
	aspectWidth, aspectHeight int

	editableColors int
	palette        []int
	depth          int

	grid []Char

	keyboards []string

	dirty           bool
	precise         bool
	touchInverted   bool
	on              bool
}

// NewScreen creates a screen with the given maximum dimensions, depth,
// and palette sizes, matching nn_newScreen.
func NewScreen(maxWidth, maxHeight, maxDepth, editableColors, paletteColors int) *Screen {
	s := &Screen{
		maxWidth: maxWidth, maxHeight: maxHeight, maxDepth: maxDepth,
		width: maxWidth, height: maxHeight,
		viewWidth: maxWidth, viewHeight: maxHeight,
		aspectWidth: 1, aspectHeight: 1,
		editableColors: editableColors,
		palette:        make([]int, paletteColors),
		depth:          maxDepth,
		on:             true,
	}
	s.grid = make([]Char, s.width*s.height)
	return s
}

func (s *Screen) Lock()   { s.mu.Lock() }
func (s *Screen) Unlock() { s.mu.Unlock() }

func (s *Screen) Resolution() (int, int) { return s.width, s.height }
func (s *Screen) MaxResolution() (int, int) { return s.maxWidth, s.maxHeight }

func (s *Screen) SetResolution(w, h int) {
	if w > s.maxWidth {
		w = s.maxWidth
	}
	if h > s.maxHeight {
		h = s.maxHeight
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	s.width, s.height = w, h
	s.grid = make([]Char, w*h)
	s.dirty = true
}

func (s *Screen) Viewport() (int, int) { return s.viewWidth, s.viewHeight }
func (s *Screen) SetViewport(w, h int) { s.viewWidth, s.viewHeight = w, h }

func (s *Screen) AspectRatio() (int, int) { return s.aspectWidth, s.aspectHeight }
func (s *Screen) SetAspectRatio(w, h int) { s.aspectWidth, s.aspectHeight = w, h }

func (s *Screen) AddKeyboard(address string) bool {
	if len(s.keyboards) >= computer.MaxScreenKeyboards {
		return false
	}
	for _, k := range s.keyboards {
		if k == address {
			return false
		}
	}
	s.keyboards = append(s.keyboards, address)
	return true
}

func (s *Screen) RemoveKeyboard(address string) {
	for i, k := range s.keyboards {
		if k == address {
			s.keyboards = append(s.keyboards[:i], s.keyboards[i+1:]...)
			return
		}
	}
}

func (s *Screen) Keyboard(idx int) string {
	if idx < 0 || idx >= len(s.keyboards) {
		return ""
	}
	return s.keyboards[idx]
}

func (s *Screen) KeyboardCount() int { return len(s.keyboards) }

func (s *Screen) EditableColors() int     { return s.editableColors }
func (s *Screen) SetEditableColors(n int) { s.editableColors = n }

func (s *Screen) PaletteColor(idx int) int {
	if idx < 0 || idx >= len(s.palette) {
		return 0
	}
	return s.palette[idx]
}

func (s *Screen) SetPaletteColor(idx, color int) {
	if idx < 0 || idx >= len(s.palette) {
		return
	}
	s.palette[idx] = color
}

func (s *Screen) PaletteCount() int { return len(s.palette) }

func (s *Screen) MaxDepth() int { return s.maxDepth }
func (s *Screen) Depth() int    { return s.depth }
func (s *Screen) SetDepth(d int) {
	if d > s.maxDepth {
		d = s.maxDepth
	}
	s.depth = d
}

func (s *Screen) Pixel(x, y int) Char {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return Char{}
	}
	return s.grid[y*s.width+x]
}

func (s *Screen) SetPixel(x, y int, ch Char) {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return
	}
	s.grid[y*s.width+x] = ch
	s.dirty = true
}

func (s *Screen) IsDirty() bool     { return s.dirty }
func (s *Screen) SetDirty(d bool)   { s.dirty = d }
func (s *Screen) IsPrecise() bool   { return s.precise }
func (s *Screen) SetPrecise(p bool) { s.precise = p }
func (s *Screen) IsTouchModeInverted() bool   { return s.touchInverted }
func (s *Screen) SetTouchModeInverted(t bool) { s.touchInverted = t }
func (s *Screen) IsOn() bool   { return s.on }
func (s *Screen) SetOn(on bool) { s.on = on }

// Table returns a computer.Table mounting screen components.
func Table() *computer.Table {
	t := computer.NewTable("screen", nil, nil, nil)

	t.Define("getKeyboards", true, func(comp *computer.Component, c *computer.Computer) string {
		s := comp.State().(*Screen)
		s.Lock()
		defer s.Unlock()
		arr := c.ReturnArray(s.KeyboardCount())
		allocator := c.Universe().Allocator()
		for i := 0; i < s.KeyboardCount(); i++ {
			v, err := value.NewString(allocator, []byte(s.Keyboard(i)))
			if err != nil {
				c.SetCError("out of memory")
				return ""
			}
			arr.Set(i, v)
			v.Drop()
		}
		return ""
	}, "getKeyboards(): string[] - Returns the addresses of keyboards bound to this screen.")

	t.Define("isOn", true, func(comp *computer.Component, c *computer.Computer) string {
		s := comp.State().(*Screen)
		s.Lock()
		defer s.Unlock()
		c.ReturnBool(s.IsOn())
		return ""
	}, "isOn(): boolean - Returns whether the screen is currently on.")

	t.Define("turnOn", false, func(comp *computer.Component, c *computer.Computer) string {
		s := comp.State().(*Screen)
		s.Lock()
		wasOff := !s.IsOn()
		s.SetOn(true)
		s.Unlock()
		c.ReturnBool(wasOff)
		resource.Apply(comp.Computer(), resource.Charge{Energy: 1})
		return ""
	}, "turnOn(): boolean - Turns the screen on. Returns whether it was off before.")

	t.Define("turnOff", false, func(comp *computer.Component, c *computer.Computer) string {
		s := comp.State().(*Screen)
		s.Lock()
		wasOn := s.IsOn()
		s.SetOn(false)
		s.Unlock()
		c.ReturnBool(wasOn)
		return ""
	}, "turnOff(): boolean - Turns the screen off. Returns whether it was on before.")

	t.Define("getAspectRatio", true, func(comp *computer.Component, c *computer.Computer) string {
		s := comp.State().(*Screen)
		s.Lock()
		w, h := s.AspectRatio()
		s.Unlock()
		c.ReturnInt(int64(w))
		c.ReturnInt(int64(h))
		return ""
	}, "getAspectRatio(): integer, integer - Returns the aspect ratio.")

	t.Define("setPrecise", false, func(comp *computer.Component, c *computer.Computer) string {
		s := comp.State().(*Screen)
		precise := c.GetArgument(0).ToBoolean()
		s.Lock()
		s.SetPrecise(precise)
		s.Unlock()
		return ""
	}, "setPrecise(precise: boolean) - Sets whether to report precise (float) touch coordinates.")

	t.Define("isPrecise", true, func(comp *computer.Component, c *computer.Computer) string {
		s := comp.State().(*Screen)
		s.Lock()
		p := s.IsPrecise()
		s.Unlock()
		c.ReturnBool(p)
		return ""
	}, "isPrecise(): boolean - Returns whether precise touch mode is enabled.")

	t.Define("setTouchModeInverted", false, func(comp *computer.Component, c *computer.Computer) string {
		s := comp.State().(*Screen)
		inv := c.GetArgument(0).ToBoolean()
		s.Lock()
		s.SetTouchModeInverted(inv)
		s.Unlock()
		return ""
	}, "setTouchModeInverted(inverted: boolean) - Sets whether touch mode is inverted.")

	t.Define("isTouchModeInverted", true, func(comp *computer.Component, c *computer.Computer) string {
		s := comp.State().(*Screen)
		s.Lock()
		inv := s.IsTouchModeInverted()
		s.Unlock()
		c.ReturnBool(inv)
		return ""
	}, "isTouchModeInverted(): boolean - Returns whether touch mode is inverted.")

	return t
}

// Mount creates a new screen component wrapping s, mounted on c at
// address/slot.
func Mount(c *computer.Computer, table *computer.Table, address string, slot int, s *Screen) *computer.Component {
	return c.NewComponent(address, slot, table, s)
}
