// Command nucleusctl is a REPL/inspector for a NeoNucleus universe:
// mount computers, step them, inspect their state machine and mounted
// components, and run a multi-computer concurrent-tick demo.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"gopkg.in/urfave/cli.v1"
)

var app = cli.NewApp()

func init() {
	app.Name = "nucleusctl"
	app.Usage = "inspect and drive a NeoNucleus universe"
	app.Version = "0.1.0"
	app.Commands = []cli.Command{
		replCommand,
		demoCommand,
	}
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "no-color", Usage: "disable colored output"},
	}
	app.Before = func(ctx *cli.Context) error {
		if ctx.GlobalBool("no-color") {
			color.NoColor = true
		}
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
