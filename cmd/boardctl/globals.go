package main

import (
	"context"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/maumercado/taskboard-go/internal/app"
	"github.com/maumercado/taskboard-go/internal/board"
	"github.com/maumercado/taskboard-go/internal/config"
	"github.com/maumercado/taskboard-go/internal/logger"
)

var styles = struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	muted lipgloss.Style
}{
	title: newBold("#7D56F4"),
	ok:    newBold("#04B575"),
	err:   newBold("#FF0000"),
	muted: newStyle("#626262"),
}

var statusStyles = map[board.Status]lipgloss.Style{
	board.StatusTodo:    newStyle("#626262"),
	board.StatusActive:  newBold("#FFA500"),
	board.StatusTesting: newBold("#7D56F4"),
	board.StatusDone:    newBold("#04B575"),
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

func renderStatus(s board.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		return s.String()
	}
	return style.Render(s.String())
}

// globals carries the persistent flags and the loaded configuration.
type globals struct {
	cfg *config.Config

	apiRoot    string
	socketURL  string
	tokenStore string
	tokenFile  string
	logLevel   string
	verbose    bool
}

func (g *globals) bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&g.apiRoot, "api-root", "", "Board API root URL")
	flags.StringVar(&g.socketURL, "socket-url", "", "Watercooler relay URL")
	flags.StringVar(&g.tokenStore, "token-store", "", "Token store (file, redis, memory)")
	flags.StringVar(&g.tokenFile, "token-file", "", "Token file for the file store")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Human readable logs on stderr")
}

// load reads the configuration and applies flag overrides.
func (g *globals) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api-root") {
		cfg.Client.APIRoot = g.apiRoot
	}
	if flags.Changed("socket-url") {
		cfg.Client.SocketURL = g.socketURL
	}
	if flags.Changed("token-store") {
		cfg.Client.TokenStore = g.tokenStore
	}
	if flags.Changed("token-file") {
		cfg.Client.TokenFile = g.tokenFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}

	level := cfg.LogLevel
	if !g.verbose && !flags.Changed("log-level") {
		level = "warn"
	}
	logger.InitWithWriter(cmd.ErrOrStderr(), level, g.verbose)

	g.cfg = cfg
	return nil
}

// app builds the board app; callers close it.
func (g *globals) app(ctx context.Context) (*app.App, error) {
	return app.New(ctx, g.cfg)
}
