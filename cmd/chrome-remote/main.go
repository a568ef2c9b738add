package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chrome-remote/client"
	"chrome-remote/config"
	"chrome-remote/loadbalance"
	"chrome-remote/logger"
	"chrome-remote/message"
	"chrome-remote/registry"
	"chrome-remote/server"
	"chrome-remote/transport"
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "--help", "-h", "help":
		showUsage()
		return
	case "targets":
		err = runTargets(args)
	case "call":
		err = runCall(args)
	case "listen":
		err = runListen(args)
	case "wait":
		err = runWait(args)
	case "serve":
		err = runServe(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'chrome-remote --help' for usage information.\n", cmd)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`chrome-remote - talk to a browser over the remote debugging protocol

USAGE:
    chrome-remote COMMAND [FLAGS] [ARGS]

COMMANDS:
    targets                 List discoverable targets
    call METHOD [PARAMS]    Send one command and print its result
    listen EVENT...         Print the named events until interrupted
    wait EVENT              Block until EVENT arrives and print its params
    serve                   Run a local endpoint for testing

FLAGS:
    --config PATH      Config file (default: ./chrome-remote.yaml)
    --url URL          Dial this WebSocket URL, skipping discovery
    --timeout DUR      wait only: give up after DUR (default 30s)

ENVIRONMENT:
    CHROME_REMOTE_URL, CHROME_REMOTE_HOST, CHROME_REMOTE_PORT,
    CHROME_REMOTE_LOGGER_LEVEL, CHROME_REMOTE_COMMAND_TIMEOUT`)
}

// env is what every subcommand starts from.
type env struct {
	cfg    *config.Config
	log    *slog.Logger
	closer func() error
	args   []string
}

func setup(name string, args []string, extra func(*flag.FlagSet)) (*env, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", "chrome-remote.yaml", "config file")
	url := fs.String("url", "", "websocket debugger url")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}
	if *url != "" {
		cfg.Target.URL = *url
	}
	log, closer, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, closer: closer, args: fs.Args()}, nil
}

// discoverer builds the configured registry. The returned func releases it.
func (e *env) discoverer() (registry.Discoverer, func(), error) {
	t := e.cfg.Target
	switch t.Registry.Kind {
	case "etcd":
		reg, err := registry.NewEtcdRegistry(t.Registry.Endpoints, e.log)
		if err != nil {
			return nil, nil, err
		}
		return reg, func() { reg.Close() }, nil
	default:
		return registry.NewDevTools(t.Host, t.Port), func() {}, nil
	}
}

func (e *env) connect(ctx context.Context) (*client.Client, error) {
	opts := client.FromConfig(e.cfg.Client, e.log)

	if e.cfg.Target.URL != "" {
		t, err := transport.DialWebSocket(ctx, e.cfg.Target.URL, transport.WebSocketOptions{Logger: e.log})
		if err != nil {
			return nil, err
		}
		return client.New(t, opts...), nil
	}

	disc, release, err := e.discoverer()
	if err != nil {
		return nil, err
	}
	defer release()
	bal, err := loadbalance.ByName(e.cfg.Target.Balancer, e.cfg.Target.Key)
	if err != nil {
		return nil, err
	}
	return client.Connect(ctx, disc, bal, e.cfg.Target.Name, opts...)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runTargets(args []string) error {
	e, err := setup("targets", args, nil)
	if err != nil {
		return err
	}
	defer e.closer()

	ctx, cancel := signalContext()
	defer cancel()

	disc, release, err := e.discoverer()
	if err != nil {
		return err
	}
	defer release()

	targets, err := disc.Discover(ctx, e.cfg.Target.Name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(targets)
}

func runCall(args []string) error {
	e, err := setup("call", args, nil)
	if err != nil {
		return err
	}
	defer e.closer()
	if len(e.args) < 1 || len(e.args) > 2 {
		return errors.New("usage: chrome-remote call METHOD [PARAMS_JSON]")
	}

	var params any
	if len(e.args) == 2 {
		raw := json.RawMessage(e.args[1])
		if !json.Valid(raw) {
			return fmt.Errorf("params are not valid JSON: %s", e.args[1])
		}
		params = raw
	}

	ctx, cancel := signalContext()
	defer cancel()
	c, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.Call(ctx, e.args[0], params)
	if err != nil {
		return err
	}
	fmt.Println(result.String())
	return nil
}

func printEvent(method string) client.Handler {
	return func(ctx context.Context, params message.Payload) error {
		fmt.Printf("%s %s\n", method, params)
		return nil
	}
}

func runListen(args []string) error {
	e, err := setup("listen", args, nil)
	if err != nil {
		return err
	}
	defer e.closer()

	ctx, cancel := signalContext()
	defer cancel()
	c, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	for _, event := range e.args {
		c.On(event, printEvent(event))
	}
	err = c.Listen(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runWait(args []string) error {
	var timeout time.Duration
	e, err := setup("wait", args, func(fs *flag.FlagSet) {
		fs.DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	})
	if err != nil {
		return err
	}
	defer e.closer()
	if len(e.args) != 1 {
		return errors.New("usage: chrome-remote wait [--timeout DUR] EVENT")
	}

	ctx, cancel := signalContext()
	defer cancel()
	c, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	params, err := c.WaitForEvent(ctx, e.args[0], timeout)
	if err != nil {
		return err
	}
	fmt.Println(params.String())
	return nil
}

func runServe(args []string) error {
	var addr, advertise string
	var ttl int64
	e, err := setup("serve", args, func(fs *flag.FlagSet) {
		fs.StringVar(&addr, "addr", "127.0.0.1:9222", "listen address")
		fs.StringVar(&advertise, "advertise", "", "publish the target in etcd under this name")
		fs.Int64Var(&ttl, "ttl", 10, "etcd lease ttl in seconds")
	})
	if err != nil {
		return err
	}
	defer e.closer()

	srv := server.NewServer(e.log)
	srv.Handle("Runtime.evaluate", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Expression string `json:"expression"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		return map[string]any{"result": map[string]string{"type": "string", "value": p.Expression}}, nil
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	hs := &http.Server{Handler: srv.Handler()}
	go hs.Serve(ln)
	e.log.Info("serving", "addr", ln.Addr().String(), "target", srv.ID())

	if advertise != "" {
		reg, err := registry.NewEtcdRegistry(e.cfg.Target.Registry.Endpoints, e.log)
		if err != nil {
			return err
		}
		defer reg.Close()
		if err := srv.Advertise(reg, advertise, srv.Target(ln.Addr().String()), ttl); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()
	<-ctx.Done()

	e.log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	hs.Shutdown(shutdownCtx)
	return srv.Shutdown(5 * time.Second)
}
