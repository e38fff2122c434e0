package screen

import (
	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/resource"
	"github.com/speedy-lex/neonucleus/unicode"
)

// GPUControl configures a GPU's limits and resource costs, mirroring
// nn_gpuControl. The control is copied into the mounted component, same
// as the reference implementation's "the control is COPIED" comment.
type GPUControl struct {
	MaxWidth, MaxHeight, MaxDepth int
	TotalVRAM                     int

	BindEnergy           float64
	PixelChangeEnergy    float64
	PixelResetEnergy     float64
	ColorChangeEnergy    float64
	VRAMByteChangeEnergy float64

	BindHeat           float64
	PixelChangeHeat    float64
	PixelResetHeat     float64
	ColorChangeHeat    float64
	VRAMByteChangeHeat float64

	BindCost           float64
	PixelChangeCost    float64
	PixelResetCost     float64
	ColorChangeCost    float64
	VRAMByteChangeCost float64

	BindLatency           float64
	PixelChangeLatency    float64
	PixelResetLatency     float64
	ColorChangeLatency    float64
	VRAMByteChangeLatency float64
}

type gpu struct {
	control    GPUControl
	bound      *Screen
	vram       []byte
	foreground int
	background int
}

// GPUTable returns a computer.Table mounting GPU components.
func GPUTable() *computer.Table {
	t := computer.NewTable("gpu", nil, nil, nil)

	t.Define("bind", false, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		_ = c.GetArgument(0) // target screen address; resolved by the embedder's component lookup
		resource.Apply(comp.Computer(), resource.Charge{
			Energy:     g.control.BindEnergy,
			Heat:       g.control.BindHeat,
			CallCost:   g.control.BindCost,
			LatencyMax: g.control.BindLatency,
		})
		c.ReturnBool(g.bound != nil)
		return ""
	}, "bind(address: string): boolean - Returns whether this GPU is bound to a screen. The address is not resolved; the host binds a screen with Bind.")

	t.Define("getScreen", true, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		if g.bound == nil {
			c.ReturnNil()
		} else {
			c.ReturnCString([]byte("bound"))
		}
		return ""
	}, "getScreen(): string - Returns \"bound\" if a screen is bound, nil otherwise. The bound screen's address is not tracked.")

	t.Define("maxResolution", true, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		c.ReturnInt(int64(g.control.MaxWidth))
		c.ReturnInt(int64(g.control.MaxHeight))
		return ""
	}, "maxResolution(): integer, integer - Returns the GPU's maximum supported resolution.")

	t.Define("maxDepth", true, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		c.ReturnInt(int64(g.control.MaxDepth))
		return ""
	}, "maxDepth(): integer - Returns the GPU's maximum supported color depth.")

	t.Define("getResolution", true, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		if g.bound == nil {
			c.SetCError("no screen bound")
			return ""
		}
		g.bound.Lock()
		w, h := g.bound.Resolution()
		g.bound.Unlock()
		c.ReturnInt(int64(w))
		c.ReturnInt(int64(h))
		return ""
	}, "getResolution(): integer, integer - Returns the resolution of the bound screen.")

	t.Define("setResolution", false, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		if g.bound == nil {
			c.SetCError("no screen bound")
			return ""
		}
		w := int(c.GetArgument(0).ToInt())
		h := int(c.GetArgument(1).ToInt())
		if w > g.control.MaxWidth || h > g.control.MaxHeight {
			c.SetCError("unsupported resolution")
			return ""
		}
		g.bound.Lock()
		g.bound.SetResolution(w, h)
		g.bound.Unlock()
		resource.Apply(comp.Computer(), resource.Charge{
			Energy:     g.control.PixelResetEnergy,
			Heat:       g.control.PixelResetHeat,
			CallCost:   g.control.PixelResetCost,
			LatencyMax: g.control.PixelResetLatency,
		})
		c.ReturnBool(true)
		return ""
	}, "setResolution(width: integer, height: integer): boolean - Sets the resolution of the bound screen.")

	t.Define("set", false, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		if g.bound == nil {
			c.SetCError("no screen bound")
			return ""
		}
		x := int(c.GetArgument(0).ToInt())
		y := int(c.GetArgument(1).ToInt())
		text := c.GetArgument(2).ToString()
		if text == nil {
			c.SetCError("bad text (string expected)")
			return ""
		}
		g.bound.Lock()
		cursor := 0
		for _, r := range string(text) {
			g.bound.SetPixel(x+cursor, y, Char{Codepoint: r, FG: g.foreground, BG: g.background})
			cursor += unicode.CellWidth(r)
		}
		g.bound.Unlock()
		n := float64(unicode.StringCells(string(text)))
		resource.Apply(comp.Computer(), resource.Charge{
			Energy:     g.control.PixelChangeEnergy * n,
			Heat:       g.control.PixelChangeHeat * n,
			CallCost:   g.control.PixelChangeCost * n,
			LatencyMax: g.control.PixelChangeLatency,
		})
		return ""
	}, "set(x: integer, y: integer, value: string) - Writes a string of text starting at the given coordinates.")

	t.Define("get", true, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		if g.bound == nil {
			c.SetCError("no screen bound")
			return ""
		}
		x := int(c.GetArgument(0).ToInt())
		y := int(c.GetArgument(1).ToInt())
		g.bound.Lock()
		ch := g.bound.Pixel(x, y)
		g.bound.Unlock()
		c.ReturnString([]byte(string(ch.Codepoint)))
		c.ReturnInt(int64(ch.FG))
		c.ReturnInt(int64(ch.BG))
		return ""
	}, "get(x: integer, y: integer): string, integer, integer - Reads back the character and colors at the given coordinates.")

	t.Define("setBackground", false, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		prev := g.background
		g.background = int(c.GetArgument(0).ToInt())
		resource.Apply(comp.Computer(), resource.Charge{
			Energy:   g.control.ColorChangeEnergy,
			Heat:     g.control.ColorChangeHeat,
			CallCost: g.control.ColorChangeCost,
		})
		c.ReturnInt(int64(prev))
		return ""
	}, "setBackground(color: integer): integer - Sets the background color used for following writes. Returns the previous value.")

	t.Define("setForeground", false, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		prev := g.foreground
		g.foreground = int(c.GetArgument(0).ToInt())
		resource.Apply(comp.Computer(), resource.Charge{
			Energy:   g.control.ColorChangeEnergy,
			Heat:     g.control.ColorChangeHeat,
			CallCost: g.control.ColorChangeCost,
		})
		c.ReturnInt(int64(prev))
		return ""
	}, "setForeground(color: integer): integer - Sets the foreground color used for following writes. Returns the previous value.")

	t.Define("getVRAMSize", true, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		c.ReturnInt(int64(g.control.TotalVRAM))
		return ""
	}, "getVRAMSize(): integer - Returns the total VRAM capacity of this GPU, in bytes.")

	t.Define("getVRAMUsed", true, func(comp *computer.Component, c *computer.Computer) string {
		g := comp.State().(*gpu)
		c.ReturnInt(int64(len(g.vram)))
		return ""
	}, "getVRAMUsed(): integer - Returns the number of VRAM bytes currently in use.")

	return t
}

// MountGPU creates a new GPU component using a copy of control.
func MountGPU(c *computer.Computer, table *computer.Table, address string, slot int, control GPUControl) *computer.Component {
	g := &gpu{control: control}
	return c.NewComponent(address, slot, table, g)
}

// Bind attaches comp (a mounted GPU component) to s, analogous to
// nn_addGPU's bind() method resolving a screen address through the
// computer's component table; callers look the screen component up
// themselves and pass its backing *Screen here.
func Bind(comp *computer.Component, s *Screen) {
	comp.State().(*gpu).bound = s
}
