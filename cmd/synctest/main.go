package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/MRC-CBU/mrisync"
)

var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "synctest",
		Usage:   "poke an mrisync setup from the bench",
		Version: Version,
		Description: "Bench companion for the mrisync daemon: watch the input channels live," +
			"\nfire output trigger pulses, or soak-test the emulated adapter." +
			"\n\nEXAMPLE:" +
			"\n\twatch an emulated 2s trigger with four buttons" +
			"\n\t\tsynctest watch --channels 5 --interval 2s",
		Commands: []*cli.Command{
			watchCommand(),
			pulseCommand(),
			emuCommand(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openInput opens an input session from the config file when one is given,
// otherwise a plain emulated session with the requested channel count.
func openInput(ctx *cli.Context) (*mrisync.InputSession, func() error, error) {
	if configPath := ctx.String("config"); len(configPath) > 0 {
		sb, err := mrisync.LoadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
		if err := sb.OpenSessions(ctx.Context); err != nil {
			return nil, nil, err
		}
		if sb.InputSession() == nil {
			sb.Close()
			return nil, nil, errors.New("config has no input session")
		}
		return sb.InputSession(), sb.Close, nil
	}

	lines := make([]uint16, ctx.Int("channels"))
	for i := range lines {
		lines[i] = uint16(i)
	}

	session, err := mrisync.OpenInput(ctx.Context, nil, mrisync.InputConfig{
		Lines:    lines,
		Interval: ctx.Duration("interval"),
	})
	if err != nil {
		return nil, nil, err
	}
	return session, session.Close, nil
}

func pulseCommand() *cli.Command {
	return &cli.Command{
		Name:  "pulse",
		Usage: "send output trigger pulses",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load a SyncBox from `FILE` (otherwise no-op emulated output)"},
			&cli.IntFlag{Name: "lines", Value: 1, Usage: "output line count without a config file"},
			&cli.IntSliceFlag{Name: "channel", Value: cli.NewIntSlice(0), Usage: "channel(s) to pulse"},
			&cli.DurationFlag{Name: "width", Value: 10 * time.Millisecond, Usage: "pulse width"},
			&cli.IntFlag{Name: "count", Value: 1, Usage: "number of pulses"},
			&cli.DurationFlag{Name: "gap", Value: time.Second, Usage: "gap between pulses"},
		},
		Action: runPulse,
	}
}

func runPulse(ctx *cli.Context) error {
	var session *mrisync.OutputSession
	var shutdown func() error

	if configPath := ctx.String("config"); len(configPath) > 0 {
		sb, err := mrisync.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if err := sb.OpenSessions(ctx.Context); err != nil {
			return err
		}
		if sb.OutputSession() == nil {
			sb.Close()
			return errors.New("config has no output session")
		}
		session, shutdown = sb.OutputSession(), sb.Close
	} else {
		lines := make([]uint16, ctx.Int("lines"))
		for i := range lines {
			lines[i] = uint16(i)
		}
		var err error
		session, err = mrisync.OpenOutput(ctx.Context, nil, mrisync.OutputConfig{Lines: lines})
		if err != nil {
			return err
		}
		shutdown = session.Close
	}
	defer shutdown()

	channels := ctx.IntSlice("channel")
	for i := 0; i < ctx.Int("count"); i++ {
		if i > 0 {
			time.Sleep(ctx.Duration("gap"))
		}
		if err := session.SendPulse(ctx.Duration("width"), channels...); err != nil {
			return err
		}
		fmt.Printf("pulse %d sent on channels %v\n", i+1, channels)
	}

	return nil
}

func emuCommand() *cli.Command {
	return &cli.Command{
		Name:  "emu",
		Usage: "soak-run the emulated adapter, printing counted events",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "channels", Value: 5, Usage: "channel count (trigger + buttons)"},
			&cli.DurationFlag{Name: "interval", Value: 2 * time.Second, Usage: "trigger repetition interval"},
			&cli.DurationFlag{Name: "for", Value: 20 * time.Second, Usage: "how long to run"},
		},
		Action: runEmu,
	}
}

func runEmu(ctx *cli.Context) error {
	lines := make([]uint16, ctx.Int("channels"))
	for i := range lines {
		lines[i] = uint16(i)
	}

	session, err := mrisync.OpenInput(ctx.Context, nil, mrisync.InputConfig{
		Lines:    lines,
		Interval: ctx.Duration("interval"),
	})
	if err != nil {
		return err
	}
	defer session.Close()

	runCtx, cancel := context.WithTimeout(ctx.Context, ctx.Duration("for"))
	defer cancel()

	deadline, _ := runCtx.Deadline()
	for {
		result, err := session.WaitFor([]int{0}, deadline, false)
		if err != nil {
			return err
		}
		if result.EventTimes[0].IsZero() {
			// Deadline hit without another pulse: done.
			fmt.Printf("soak finished, trigger events: %d\n", result.State.Channels[0].Events)
			return nil
		}
		fmt.Printf("trigger at %s, pulse estimate %d (known %v)\n",
			result.EventTimes[0].Format("15:04:05.000"), result.Pulse, result.PulseKnown)
	}
}
