package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/maumercado/taskboard-go/internal/api/middleware"
	"github.com/maumercado/taskboard-go/internal/board"
	"github.com/maumercado/taskboard-go/internal/events"
	"github.com/maumercado/taskboard-go/pkg/client"
)

func loginCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "login <token>",
		Short: "Store the API token used for every request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Session.Save(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.ok.Render("Logged in"))
			return nil
		},
	}
}

func logoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Session.Delete(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.ok.Render("Logged out"))
			return nil
		},
	}
}

func statusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured board and session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styles.title.Render("Board"))
			fmt.Fprintf(out, "  API:      %s\n", g.cfg.Client.APIRoot)
			fmt.Fprintf(out, "  Relay:    %s\n", valueOrDefault(g.cfg.Client.SocketURL, "(derived from API)"))
			fmt.Fprintf(out, "  Tokens:   %s\n", valueOrDefault(g.cfg.Client.TokenStore, "file"))
			if a.Session.Authenticated() {
				fmt.Fprintf(out, "  Session:  %s\n", styles.ok.Render("logged in"))
			} else {
				fmt.Fprintf(out, "  Session:  %s\n", styles.muted.Render("anonymous"))
			}

			// An unreachable API is reported, not fatal
			root, err := a.Client.Discover(ctx)
			if err != nil {
				fmt.Fprintf(out, "  API root: %s\n", styles.err.Render("FAILED ("+err.Error()+")"))
				return nil
			}
			fmt.Fprintf(out, "  API root: %s\n", styles.ok.Render("OK"))
			fmt.Fprintf(out, "    sprints %s\n    tasks   %s\n    users   %s\n", root.Sprints, root.Tasks, root.Users)
			return nil
		},
	}
}

func sprintsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "sprints",
		Short: "List sprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sprints, err := a.Sprints.FetchAll(ctx, client.FetchOptions{})
			if err != nil {
				return err
			}
			if len(sprints) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), styles.muted.Render("No sprints"))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEND")
			for _, s := range sprints {
				end := "-"
				if s.End != nil {
					end = s.End.String()
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", s.ID, s, end)
			}
			return w.Flush()
		},
	}
}

func backlogCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "backlog",
		Short: "List tasks that belong to no sprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			tasks, err := a.Tasks.GetBacklog(ctx)
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
}

func printTasks(out io.Writer, tasks []board.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, styles.muted.Render("No tasks"))
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORDER\tSTATUS\tNAME")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", t.ID, t.Order, renderStatus(t.Status), t.Name)
	}
	w.Flush()
}

func moveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "move <task> <status> [sprint] [order]",
		Short: "Move a task to another column, sprint or position",
		Long: `Move a task. status is todo, active, testing, done or 1-4.
sprint is a sprint id, or "backlog" to take the task out of its sprint.
sprint and order default to the task's current values.`,
		Args: cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := board.ParseStatus(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := g.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.Tasks.GetOrFetch(ctx, args[0])
			if err != nil {
				return err
			}

			sprint := task.Sprint
			if len(args) > 2 {
				if sprint, err = parseSprint(args[2]); err != nil {
					return err
				}
			}
			order := task.Order
			if len(args) > 3 {
				if order, err = strconv.Atoi(args[3]); err != nil {
					return fmt.Errorf("invalid order %q: %w", args[3], err)
				}
			}

			moved, err := a.Tasks.MoveTo(ctx, task, status, sprint, order)
			if err != nil {
				return err
			}
			if !moved {
				return fmt.Errorf("task %s cannot move from %s to %s", args[0], task.Status, status)
			}

			saved, _ := a.Tasks.Get(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Moved task %s to %s\n", args[0], renderStatus(saved.Status))
			return nil
		},
	}
}

// parseSprint maps "backlog", "-" and "0" to no sprint.
func parseSprint(s string) (*int64, error) {
	switch s {
	case "backlog", "-", "0", "":
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return nil, fmt.Errorf("invalid sprint %q", s)
	}
	return board.SprintID(id), nil
}

func watchCmd(g *globals) *cobra.Command {
	var reconnect bool

	cmd := &cobra.Command{
		Use:   "watch <sprint>",
		Short: "Follow a sprint's live updates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := g.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Start(ctx, args[0]); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styles.title.Render("Watching sprint "+args[0]))

			var mu sync.Mutex
			closed := make(chan struct{})
			var once sync.Once
			a.Socket.Events().On(events.AllEvents, func(ev events.Event) {
				mu.Lock()
				defer mu.Unlock()
				printEvent(out, ev)
				if ev.Name == events.EventClosed && !reconnect {
					once.Do(func() { close(closed) })
				}
			})

			if reconnect {
				err := a.Socket.Reconnect(ctx, client.DefaultRetryPolicy())
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			select {
			case <-ctx.Done():
				return nil
			case <-closed:
				return errors.New("connection to relay lost")
			}
		},
	}

	cmd.Flags().BoolVarP(&reconnect, "reconnect", "r", false, "Reconnect with backoff when the relay drops")

	return cmd
}

func printEvent(out io.Writer, ev events.Event) {
	stamp := styles.muted.Render(time.Now().Format("15:04:05"))
	switch {
	case ev.Name == events.EventMessage && ev.Model != "" && ev.Action != "":
		// The topic event that follows says the same thing
	case ev.Name == events.EventError:
		fmt.Fprintf(out, "%s %s %v\n", stamp, styles.err.Render("error"), ev.Err)
	case ev.Name == events.EventOpen || ev.Name == events.EventClosed:
		fmt.Fprintf(out, "%s %s\n", stamp, styles.title.Render(ev.Name))
	case ev.Model != "":
		fmt.Fprintf(out, "%s %s %s\n", stamp, ev.Name, ev.ID)
	default:
		fmt.Fprintf(out, "%s %s %s\n", stamp, ev.Name, ev.Raw)
	}
}

func relayTokenCmd(g *globals) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "relay-token <username>",
		Short: "Sign a relay access token with auth.jwtsecret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwtsecret is not configured")
			}
			token, err := middleware.IssueToken(g.cfg.Auth.JWTSecret, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
