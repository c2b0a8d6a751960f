package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"elesrank/internal/ranking"
	logx "elesrank/pkg/logx"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

type command struct {
	usage string
	help  string
	run   func(a *App, arg string) error
}

var commands = map[string]command{
	"search": {usage: "search [query]", help: "filter by a search query; empty clears it", run: func(a *App, arg string) error {
		a.ctrl.SetSearch(arg)
		return nil
	}},
	"type": {usage: "type all_types|escalators_only|elevators_only", help: "filter by unit type", run: func(a *App, arg string) error {
		return a.ctrl.SetUnitTypes(arg)
	}},
	"period": {usage: "period " + periodList(), help: "switch the ranking period", run: func(a *App, arg string) error {
		return a.ctrl.SetPeriod(arg)
	}},
	"sort": {usage: "sort <+|-field>|none", help: "order by a field; none keeps directory order", run: func(a *App, arg string) error {
		if strings.EqualFold(arg, "none") {
			arg = ""
		} else if arg == "" {
			return errors.New("sort: field required (see 'fields')")
		} else if f := ranking.ParseSort(arg).Field; !ranking.IsSortField(f) {
			return fmt.Errorf("sort: cannot order by %q", f)
		}
		a.ctrl.SetSort(arg)
		return nil
	}},
	"page": {usage: "page <n>", help: "show page n", run: func(a *App, arg string) error {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("page: %q is not a number", arg)
		}
		a.ctrl.SetPage(n)
		return nil
	}},
	"next": {usage: "next", help: "show the next page", run: func(a *App, _ string) error {
		a.ctrl.SetPage(a.ctrl.Current().Table.Page + 1)
		return nil
	}},
	"prev": {usage: "prev", help: "show the previous page", run: func(a *App, _ string) error {
		a.ctrl.SetPage(a.ctrl.Current().Table.Page - 1)
		return nil
	}},
	"reset": {usage: "reset", help: "clear period, unit type and search filters", run: func(a *App, _ string) error {
		a.ctrl.ResetFilters()
		return nil
	}},
	"show": {usage: "show", help: "print the current page again", run: func(a *App, _ string) error {
		return a.render(a.ctrl.Current())
	}},
	"state": {usage: "state", help: "print the encoded table state", run: func(a *App, _ string) error {
		st := a.ctrl.State()
		a.printf("%s\n", st.Encode())
		return nil
	}},
	"fields": {usage: "fields", help: "list sortable and searchable fields", run: func(a *App, _ string) error {
		a.printf("%s\n", strings.Join(ranking.FieldNames(), " "))
		return nil
	}},
	"quit": {usage: "quit", help: "exit", run: func(*App, string) error { return ErrQuit }},
}

func init() {
	commands["help"] = command{usage: "help", help: "list commands", run: func(a *App, _ string) error {
		a.printf("%s", helpText())
		return nil
	}}
	commands["exit"] = commands["quit"]
}

func periodList() string {
	ps := ranking.Periods()
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return strings.Join(out, "|")
}

func helpText() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		if name != "exit" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "  %-48s %s\n", commands[n].usage, commands[n].help)
	}
	return b.String()
}

// Exec runs one command line. Blank lines are ignored.
func (a *App) Exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	name, arg, _ := strings.Cut(line, " ")
	cmd, ok := commands[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown command %q (try 'help')", name)
	}
	return cmd.run(a, strings.TrimSpace(arg))
}

// RunCommands reads commands from in until quit, EOF or ctx is done.
func (a *App) RunCommands(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.Done():
			return a.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			err := a.Exec(line)
			switch {
			case errors.Is(err, ErrQuit):
				return nil
			case err != nil:
				a.printf("error: %v\n", err)
				a.log.Debug("command failed", logx.String("line", line), logx.Err(err))
			}
		}
	}
}
