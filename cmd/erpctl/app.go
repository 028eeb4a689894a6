package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/erpconsole/internal/access"
	"github.com/pitabwire/erpconsole/internal/backend"
	"github.com/pitabwire/erpconsole/internal/config"
	"github.com/pitabwire/erpconsole/internal/definition"
	"github.com/pitabwire/erpconsole/internal/listing"
	"github.com/pitabwire/erpconsole/internal/session"
	"github.com/pitabwire/erpconsole/model"
)

type record = map[string]any

const maxSignInAttempts = 3

type app struct {
	cfg      *config.Config
	registry *definition.Registry
	client   *backend.Client
	auth     *backend.Auth
	in       *bufio.Scanner
	out      io.Writer
	errOut   io.Writer
	logger   *zap.Logger
	creds    backend.Credentials
	pageSize int
	page     int
	filters  model.Filters

	current    *session.Current
	redirector *session.Redirector
	signIns    chan string

	mu   sync.Mutex
	view string
}

func (a *app) initSession() {
	a.current = &session.Current{}
	a.signIns = make(chan string, 1)
	a.redirector = session.NewRedirector(a.current, a.cfg.Session.SignInPath, a.cfg.Session.RedirectDelay, func(target string) {
		select {
		case a.signIns <- target:
		default:
		}
	})
}

// onUnauthorized runs on the goroutine that saw the 401.
func (a *app) onUnauthorized(context.Context) {
	a.redirector.Unauthorized(a.currentView(), false)
}

func (a *app) setView(v string) {
	a.mu.Lock()
	a.view = v
	a.mu.Unlock()
}

func (a *app) currentView() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

func (a *app) ask(prompt string) string {
	fmt.Fprint(a.out, prompt)
	if !a.in.Scan() {
		return ""
	}
	return strings.TrimSpace(a.in.Text())
}

// signIn logs in with the known credentials, asking for whatever is
// missing. A rejected password is forgotten so the next attempt asks again.
func (a *app) signIn(ctx context.Context) error {
	var err error
	for range maxSignInAttempts {
		if a.creds.Username == "" {
			a.creds.Username = a.ask("Username: ")
		}
		if a.creds.Password == "" {
			a.creds.Password = a.ask("Password: ")
		}
		var identity model.Identity
		identity, _, err = a.auth.Login(ctx, a.creds)
		if err == nil {
			a.current.Set(&identity)
			fmt.Fprintf(a.out, "Signed in as %s\n", identity.Username)
			return nil
		}
		if !model.IsUnauthorized(err) {
			return err
		}
		fmt.Fprintln(a.errOut, describe(err))
		a.creds.Password = ""
	}
	return err
}

// reauthenticate waits for the sign-in redirect scheduled by the failed
// request, signs in again and reports the view being returned to.
func (a *app) reauthenticate(ctx context.Context) error {
	fmt.Fprintln(a.out, "Your session has expired, please sign in again.")
	var target string
	select {
	case target = <-a.signIns:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := a.signIn(ctx); err != nil {
		return err
	}
	if back := returnPath(target); back != "" {
		fmt.Fprintf(a.out, "Returning to %s\n", back)
	}
	return nil
}

// returnPath extracts the redirect parameter of a sign-in location.
func returnPath(signInURL string) string {
	u, err := url.Parse(signInURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(session.RedirectParam)
}

// resource returns the definition of name, or a default one addressing
// /api/<name> when no definition describes it.
func (a *app) resource(name string) model.ResourceDefinition {
	if a.registry != nil {
		if rd, ok := a.registry.Resource(name); ok {
			return rd
		}
	}
	return model.ResourceDefinition{Name: name, Label: name, Path: "/api/" + name}
}

func (a *app) endpoint(rd model.ResourceDefinition) *backend.Resource[record] {
	return backend.NewResource[record](a.client, rd.Name, rd.Path, backend.WithPagination(backend.Pagination{
		PageParam: rd.Pagination.PageParam,
		SizeParam: rd.Pagination.SizeParam,
	}))
}

func (a *app) sizeFor(rd model.ResourceDefinition) int {
	switch {
	case a.pageSize > 0:
		return a.pageSize
	case rd.Pagination.PageSize > 0:
		return rd.Pagination.PageSize
	case a.cfg.Backend.Pagination.DefaultPageSize > 0:
		return a.cfg.Backend.Pagination.DefaultPageSize
	}
	return listing.DefaultPageSize
}

// open signs in and checks that the signed-in user may list name.
func (a *app) open(ctx context.Context, name string) (model.ResourceDefinition, error) {
	rd := a.resource(name)
	a.setView("/resources/" + rd.Name)
	if err := a.signIn(ctx); err != nil {
		return rd, err
	}
	if !access.Allow(a.current.Get(), rd.Access.For("list")) {
		return rd, model.NewForbiddenError("You do not have permission to list " + rd.Label)
	}
	return rd, nil
}

// list prints one page.
func (a *app) list(ctx context.Context, name string) error {
	rd, err := a.open(ctx, name)
	if err != nil {
		return err
	}
	page, err := a.endpoint(rd).List(ctx, model.ListParams{
		PageIndex: max(a.page, 1),
		PageSize:  a.sizeFor(rd),
		Filters:   a.filters,
	})
	if err != nil {
		return err
	}
	renderState(a.out, rd, listing.State[record]{
		Items:       page.Items,
		CurrentPage: max(page.PageIndex, 1),
		PageSize:    page.PageSize,
		TotalItems:  page.TotalItems,
		TotalPages:  page.TotalPages,
		Filters:     a.filters,
	})
	return nil
}

// browse pages through name interactively until q or end of input.
func (a *app) browse(ctx context.Context, name string) error {
	rd, err := a.open(ctx, name)
	if err != nil {
		return err
	}
	endpoint := a.endpoint(rd)
	fetch := func(ctx context.Context, pageIndex, pageSize int, filters model.Filters) (model.PagedResult[record], error) {
		return endpoint.List(ctx, model.ListParams{PageIndex: pageIndex, PageSize: pageSize, Filters: filters})
	}
	ctrl, err := listing.New(fetch,
		listing.WithPageSize(a.sizeFor(rd)),
		listing.WithLogger(a.logger),
		listing.WithContext(ctx),
	)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, helpText)
	ctrl.SetFilters(a.filters)
	if a.page > 1 {
		ctrl.Wait()
		ctrl.GoToPage(a.page)
	}

	show := true
	for {
		ctrl.Wait()
		state := ctrl.State()
		if model.IsUnauthorized(state.Err) {
			if err := a.reauthenticate(ctx); err != nil {
				return err
			}
			ctrl.Refresh()
			continue
		}
		if show {
			renderState(a.out, rd, state)
		}

		fmt.Fprint(a.out, "> ")
		if !a.in.Scan() {
			return a.in.Err()
		}
		cmd, err := parseCommand(a.in.Text())
		if err != nil {
			fmt.Fprintln(a.out, err)
			show = false
			continue
		}
		if cmd.quit {
			return nil
		}
		show = a.apply(ctrl, state, cmd)
	}
}

// apply runs cmd and reports whether a fetch was issued.
func (a *app) apply(ctrl *listing.Controller[record], state listing.State[record], cmd command) bool {
	switch cmd.name {
	case "n":
		if !ctrl.GoToPage(state.CurrentPage + 1) {
			fmt.Fprintln(a.out, "Already on the last page")
			return false
		}
	case "p":
		if !ctrl.GoToPage(state.CurrentPage - 1) {
			fmt.Fprintln(a.out, "Already on the first page")
			return false
		}
	case "g":
		if !ctrl.GoToPage(cmd.page) {
			fmt.Fprintf(a.out, "Already on page %d\n", state.CurrentPage)
			return false
		}
	case "f":
		filters := state.Filters.Clone()
		switch {
		case cmd.key == "":
			filters = model.Filters{}
		case cmd.value == "":
			delete(filters, cmd.key)
		default:
			filters[cmd.key] = cmd.value
		}
		ctrl.SetFilters(filters)
	case "r":
		ctrl.Refresh()
	default:
		fmt.Fprintln(a.out, helpText)
		return false
	}
	return true
}

const helpText = "Commands: n next, p previous, g N go to page, f key=value filter (f key= clears one, f clears all), r refresh, q quit"

type command struct {
	name  string
	page  int
	key   string
	value string
	quit  bool
}

// parseCommand reads one line of browse input.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{name: "r"}, nil
	}
	name := strings.ToLower(fields[0])
	switch name {
	case "q", "quit", "exit":
		return command{quit: true}, nil
	case "n", "p", "r", "h", "?":
		return command{name: name}, nil
	case "g":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("usage: g N")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return command{}, fmt.Errorf("page must be a number: %q", fields[1])
		}
		return command{name: "g", page: n}, nil
	case "f":
		arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		if arg == "" {
			return command{name: "f"}, nil
		}
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return command{}, fmt.Errorf("usage: f key=value")
		}
		return command{name: "f", key: strings.TrimSpace(key), value: strings.TrimSpace(value)}, nil
	}
	return command{}, fmt.Errorf("unknown command %q; %s", fields[0], helpText)
}
