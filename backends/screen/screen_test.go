package screen_test

import (
	"testing"

	"github.com/speedy-lex/neonucleus/alloc"
	"github.com/speedy-lex/neonucleus/arch"
	"github.com/speedy-lex/neonucleus/backends/screen"
	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/universe"
	"github.com/speedy-lex/neonucleus/value"
)

func newMounted(t *testing.T) (*computer.Computer, *computer.Component, *computer.Component) {
	t.Helper()
	u := universe.New(alloc.NewCounting(0), universe.NewFixedClock(0))
	c, err := computer.New(u, "cpu-0", arch.Nop{}, 4096, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s := screen.NewScreen(80, 25, 8, 16, 256)
	screenComp := screen.Mount(c, screen.Table(), "screen-0", 0, s)

	gpuComp := screen.MountGPU(c, screen.GPUTable(), "gpu-0", 1, screen.GPUControl{
		MaxWidth: 80, MaxHeight: 25, MaxDepth: 8, TotalVRAM: 1 << 16,
	})
	screen.Bind(gpuComp, s)
	return c, screenComp, gpuComp
}

func invoke(t *testing.T, c *computer.Computer, comp *computer.Component, method string, args ...value.Value) []value.Value {
	t.Helper()
	c.ResetCall()
	for _, a := range args {
		c.AddArgument(a)
	}
	if ok := comp.Invoke(c, method); !ok {
		t.Fatalf("method %q does not exist", method)
	}
	if errStr := c.GetError(); errStr != "" {
		t.Fatalf("invoke %q returned error: %s", method, errStr)
	}
	rets := make([]value.Value, c.ReturnCount())
	for i := range rets {
		rets[i] = c.GetReturn(i)
	}
	return rets
}

func TestScreenDefaultsOn(t *testing.T) {
	c, screenComp, _ := newMounted(t)
	if !invoke(t, c, screenComp, "isOn")[0].ToBoolean() {
		t.Error("a new screen should start on")
	}
}

func TestGPUResolutionRoundTrip(t *testing.T) {
	c, _, gpuComp := newMounted(t)
	invoke(t, c, gpuComp, "setResolution", value.Int(40), value.Int(20))
	rets := invoke(t, c, gpuComp, "getResolution")
	if rets[0].ToInt() != 40 || rets[1].ToInt() != 20 {
		t.Errorf("getResolution = (%d, %d), want (40, 20)", rets[0].ToInt(), rets[1].ToInt())
	}
}

func TestGPUSetAndGetText(t *testing.T) {
	c, _, gpuComp := newMounted(t)
	invoke(t, c, gpuComp, "set", value.Int(0), value.Int(0), value.BorrowedCStr([]byte("hi")))
	rets := invoke(t, c, gpuComp, "get", value.Int(0), value.Int(0))
	if string(rets[0].ToString()) != "h" {
		t.Errorf("get(0,0) = %q, want %q", rets[0].ToString(), "h")
	}
}

func TestKeyboardBinding(t *testing.T) {
	c, screenComp, _ := newMounted(t)
	s := screenComp.State().(*screen.Screen)
	s.AddKeyboard("kbd-0")
	rets := invoke(t, c, screenComp, "getKeyboards")
	kbds := rets[0]
	if kbds.Len() != 1 || string(kbds.Get(0).ToString()) != "kbd-0" {
		t.Errorf("getKeyboards did not report the bound keyboard")
	}
}
