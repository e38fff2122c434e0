package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"

	"github.com/speedy-lex/neonucleus/alloc"
	"github.com/speedy-lex/neonucleus/archguestvm"
	"github.com/speedy-lex/neonucleus/backends/eeprom"
	"github.com/speedy-lex/neonucleus/computer"
	"github.com/speedy-lex/neonucleus/universe"
)

var demoCommand = cli.Command{
	Name:  "demo",
	Usage: "mount several computers and tick them concurrently",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "computers", Value: 4, Usage: "number of computers to mount"},
		cli.IntFlag{Name: "ticks", Value: 8, Usage: "number of ticks to run"},
	},
	Action: runDemo,
}

// haltingEEPROM boots every mounted computer straight into a halt so the
// demo's only interesting output is the state each one settles into.
var haltingEEPROM = []byte{byte(archguestvm.OpHalt), 0x00, 0x00, 0x00}

func runDemo(ctx *cli.Context) error {
	n := ctx.Int("computers")
	ticks := ctx.Int("ticks")

	u := universe.New(alloc.NewCounting(0), universe.NewRealClock())
	computers := make([]*computer.Computer, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("demo-%d", i)
		c, err := computer.New(u, name, archguestvm.Arch{}, 1<<20, 16)
		if err != nil {
			return fmt.Errorf("mount %s: %w", name, err)
		}
		c.SetEnergyInfo(1e6, 1e6)
		c.SetCallBudget(1e6)
		backend := eeprom.NewVolatile(4096, 256)
		if err := backend.Set(haltingEEPROM); err != nil {
			return fmt.Errorf("seed eeprom for %s: %w", name, err)
		}
		eeprom.Mount(c, eeprom.Table(), name+"-eeprom", 0, backend, eeprom.Control{})
		computers = append(computers, c)
	}

	for round := 0; round < ticks; round++ {
		g, _ := errgroup.WithContext(context.Background())
		for _, c := range computers {
			c := c
			g.Go(func() error {
				c.Tick()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stdout, "ticked %d computers %d times each\n", n, ticks)
	for _, c := range computers {
		fmt.Fprintf(os.Stdout, "  %-12s state=%-12s uptime=%.3fs\n", c.Address(), c.State(), c.Uptime())
	}
	return nil
}
