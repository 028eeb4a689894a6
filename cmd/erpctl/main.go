// Package main is erpctl, a terminal client for the ERP backend. It signs in
// like the browser console does and pages through resources.
//
//	erpctl browse employees     interactive paging and filtering
//	erpctl list customers -p 2  print one page
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pitabwire/erpconsole/internal/backend"
	"github.com/pitabwire/erpconsole/internal/config"
	"github.com/pitabwire/erpconsole/internal/definition"
	"github.com/pitabwire/erpconsole/model"
)

type options struct {
	configPath  string
	envFile     string
	baseURL     string
	username    string
	password    string
	definitions []string
	page        int
	pageSize    int
	filters     map[string]string
	verbose     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("erpctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.configPath, "config", "c", "", "console configuration file")
	fs.StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file")
	fs.StringVar(&opts.baseURL, "base-url", os.Getenv("ERPCTL_BASE_URL"), "ERP backend base URL")
	fs.StringVarP(&opts.username, "username", "u", os.Getenv("ERPCTL_USERNAME"), "sign-in username")
	fs.StringVar(&opts.password, "password", os.Getenv("ERPCTL_PASSWORD"), "sign-in password (prompted when empty)")
	fs.StringSliceVarP(&opts.definitions, "definitions", "d", nil, "resource definition directories")
	fs.IntVarP(&opts.page, "page", "p", 1, "page to print (list)")
	fs.IntVarP(&opts.pageSize, "page-size", "s", 0, "records per page")
	fs.StringToStringVarP(&opts.filters, "filter", "f", nil, "filter as key=value (repeatable)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log backend traffic to stderr")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: erpctl [flags] browse|list <resource>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	command, resource := fs.Arg(0), fs.Arg(1)

	a, err := newApp(opts, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "erpctl: %v\n", err)
		return 1
	}

	switch command {
	case "browse":
		err = a.browse(ctx, resource)
	case "list":
		err = a.list(ctx, resource)
	default:
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "erpctl: %s\n", describe(err))
		return 1
	}
	return 0
}

func newApp(opts options, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}
	cfg := config.Defaults()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.baseURL != "" {
		cfg.Backend.BaseURL = opts.baseURL
	}
	if cfg.Backend.BaseURL == "" {
		return nil, errors.New("no backend configured: pass --base-url or set ERPCTL_BASE_URL")
	}
	if len(opts.definitions) > 0 {
		cfg.Definitions.Directories = opts.definitions
	}

	logger := zap.NewNop()
	if opts.verbose {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.OutputPaths = []string{"stderr"}
		l, err := zcfg.Build()
		if err != nil {
			return nil, err
		}
		logger = l
	}

	var registry *definition.Registry
	if defs, err := definition.NewLoader().LoadAll(cfg.Definitions.Directories); err == nil {
		registry = definition.NewRegistry(defs)
	} else {
		logger.Debug("no resource definitions, using backend defaults", zap.Error(err))
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		registry: registry,
		in:       bufio.NewScanner(stdin),
		out:      stdout,
		errOut:   stderr,
		logger:   logger,
		creds:    backend.Credentials{Username: opts.username, Password: opts.password},
		pageSize: opts.pageSize,
		page:     opts.page,
		filters:  model.Filters(opts.filters),
	}
	a.initSession()

	client, err := backend.NewClient(cfg.Backend,
		backend.WithCookieJar(jar),
		backend.WithLogger(logger),
		backend.WithUnauthorizedHook(a.onUnauthorized),
	)
	if err != nil {
		return nil, err
	}
	a.client = client
	a.auth = backend.NewAuth(client)
	return a, nil
}

// describe turns an error into the message shown to the user.
func describe(err error) string {
	if env, ok := model.AsErrorEnvelope(err); ok {
		return env.Message
	}
	return err.Error()
}
