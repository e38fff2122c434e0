package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"github.com/speedy-lex/neonucleus/alloc"
	"github.com/speedy-lex/neonucleus/archguestvm"
	"github.com/speedy-lex/neonucleus/backends/eeprom"
	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/universe"
	"github.com/speedy-lex/neonucleus/value"
)

var replCommand = cli.Command{
	Name:   "repl",
	Usage:  "start an interactive session against a fresh universe",
	Action: runRepl,
}

// session holds every computer the REPL operator has mounted, keyed by
// the name they gave it on the mount command.
type session struct {
	u         *universe.Universe
	computers map[string]*computer.Computer
	out       io.Writer
}

func runRepl(ctx *cli.Context) error {
	out := colorable.NewColorable(os.Stdout)
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		out = os.Stdout
	}

	s := &session{
		u:         universe.New(alloc.NewCounting(0), universe.NewRealClock()),
		computers: make(map[string]*computer.Computer),
		out:       out,
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Fprintln(out, "nucleusctl — type 'help' for a command list")
	for {
		input, err := line.Prompt("nucleus> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if input == "quit" || input == "exit" {
			return nil
		}
		if err := s.dispatch(input); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
}

func (s *session) dispatch(input string) error {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "help":
		s.help()
	case "mount":
		return s.mount(args)
	case "ls":
		return s.list(args)
	case "tick":
		return s.tick(args)
	case "state":
		return s.state(args)
	case "signal":
		return s.signal(args)
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	return nil
}

func (s *session) help() {
	fmt.Fprintln(s.out, `commands:
  mount <name> <memory-bytes>   mount a new guestvm-driven computer
  ls                             list mounted computers
  tick <name>                    run one tick
  state <name>                   show energy/temperature/call state
  signal <name> <int>            push a single-integer signal
  quit                            exit`)
}

func (s *session) mount(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: mount <name> <memory-bytes>")
	}
	name := args[0]
	mem, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("bad memory size: %w", err)
	}
	if _, exists := s.computers[name]; exists {
		return fmt.Errorf("a computer named %q is already mounted", name)
	}
	c, err := computer.New(s.u, name, archguestvm.Arch{}, mem, 16)
	if err != nil {
		return err
	}
	backend := eeprom.NewVolatile(4096, 256)
	eeprom.Mount(c, eeprom.Table(), name+"-eeprom", 0, backend, eeprom.Control{})
	s.computers[name] = c
	fmt.Fprintf(s.out, "mounted %q\n", name)
	return nil
}

func (s *session) list(args []string) error {
	table := tablewriter.NewWriter(s.out)
	table.SetHeader([]string{"Name", "State", "Energy", "Temperature"})
	for name, c := range s.computers {
		table.Append([]string{
			name,
			c.State().String(),
			strconv.FormatFloat(c.Energy(), 'f', 1, 64),
			strconv.FormatFloat(c.Temperature(), 'f', 1, 64),
		})
	}
	table.Render()
	return nil
}

func (s *session) tick(args []string) error {
	c, err := s.find(args)
	if err != nil {
		return err
	}
	st := c.Tick()
	fmt.Fprintf(s.out, "tick result: %s\n", st)
	return nil
}

func (s *session) state(args []string) error {
	c, err := s.find(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "state=%s energy=%.1f/%.1f temperature=%.1f uptime=%.2fs\n",
		c.State(), c.Energy(), c.MaxEnergy(), c.Temperature(), c.Uptime())
	return nil
}

func (s *session) signal(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: signal <name> <int>")
	}
	c, err := s.find(args[:1])
	if err != nil {
		return err
	}
	n, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("bad integer: %w", err)
	}
	if reason := c.PushSignal([]computer.Value{value.Int(n)}); reason != "" {
		return fmt.Errorf("push rejected: %s", reason)
	}
	return nil
}

func (s *session) find(args []string) (*computer.Computer, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing computer name")
	}
	c, ok := s.computers[args[0]]
	if !ok {
		return nil, fmt.Errorf("no computer named %q", args[0])
	}
	return c, nil
}
