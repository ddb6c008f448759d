package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"

	"github.com/MRC-CBU/mrisync"
)

const watchPollEvery = 50 * time.Millisecond

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff5f")).Bold(true)
	emuStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "live channel monitor (keys 1..9 press emulated buttons)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load a SyncBox from `FILE` (otherwise emulated input)"},
			&cli.IntFlag{Name: "channels", Value: 5, Usage: "channel count without a config file"},
			&cli.DurationFlag{Name: "interval", Value: 2 * time.Second, Usage: "trigger repetition interval without a config file"},
		},
		Action: runWatch,
	}
}

func runWatch(ctx *cli.Context) error {
	session, shutdown, err := openInput(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	m := watchModel{session: session}
	_, err = tea.NewProgram(m).Run()
	return err
}

type watchModel struct {
	session  *mrisync.InputSession
	snap     mrisync.Snapshot
	pollErr  error
	quitting bool
}

type pollMsg time.Time

func pollTick() tea.Cmd {
	return tea.Tick(watchPollEvery, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func (m watchModel) Init() tea.Cmd {
	return pollTick()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		if emu := m.session.Emu(); emu != nil && len(key) == 1 && key >= "1" && key <= "9" {
			emu.Keys().Press(key)
		}

	case pollMsg:
		m.pollErr = m.session.Poll()
		if m.pollErr == nil {
			m.snap = m.session.Snapshot()
		}
		return m, pollTick()
	}

	return m, nil
}

func (m watchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render("mrisync watch"))
	b.WriteString("  ")
	if m.snap.Emulating {
		b.WriteString(emuStyle.Render("EMULATED"))
	} else {
		b.WriteString(activeStyle.Render("hardware"))
	}
	if pulse, known := m.session.PulseNumber(m.snap.Taken); known {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  pulse ~%d", pulse)))
	}
	b.WriteString("\n\n")

	b.WriteString(dimStyle.Render(fmt.Sprintf("%4s %8s %6s %14s %14s", "chan", "role", "level", "last event", "events")))
	b.WriteString("\n")

	for i, ch := range m.snap.Channels {
		role := "button"
		if i == 0 {
			role = "trigger"
		}

		level := "_"
		style := dimStyle
		if ch.LastLevel {
			level = "█"
			style = activeStyle
		}

		last := "-"
		if !ch.LastEvent.IsZero() {
			last = ch.LastEvent.Format("15:04:05.000")
		}

		b.WriteString(style.Render(fmt.Sprintf("%4d %8s %6s %14s %14d", i, role, level, last, ch.Events)))
		b.WriteString("\n")
	}

	if m.pollErr != nil {
		b.WriteString("\n")
		b.WriteString(emuStyle.Render(fmt.Sprintf("poll error: %v", m.pollErr)))
	}

	b.WriteString("\n")
	if m.session.Emu() != nil {
		b.WriteString(helpStyle.Render("1..9 press emulated buttons • q quit"))
	} else {
		b.WriteString(helpStyle.Render("q quit"))
	}
	b.WriteString("\n")

	return b.String()
}
