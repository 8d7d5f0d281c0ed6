package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"text/tabwriter"

	flag "github.com/spf13/pflag"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/engine-bridge/config"
	"github.com/wippyai/engine-bridge/invoke"
	"github.com/wippyai/engine-bridge/loader"
	"github.com/wippyai/engine-bridge/server"
	"github.com/wippyai/engine-bridge/transfer"
)

const usage = `Usage: enginebridge <command> [flags]

Commands:
  exports   list the operations the engine exports
  invoke    run one operation
  serve     serve the engine over HTTP
  version   print the version

Run "enginebridge <command> --help" for command flags.
`

// env is the process environment a command runs in.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: no command", ErrUsage)
	}
	e := env{stdin: stdin, stdout: stdout, stderr: stderr}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "exports":
		return e.exports(rest)
	case "invoke":
		return e.invoke(rest)
	case "serve":
		return e.serve(rest)
	case "version":
		fmt.Fprintln(stdout, Version)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

// setup parses flags, resolves config and configures the default loader.
func (e env) setup(fs *flag.FlagSet, common *commonFlags, args []string, opts ...loader.Option) (*config.Config, *zap.Logger, error) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	cfg, err := common.load(fs)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(e.stderr, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	installLogger(log)

	opts = append([]loader.Option{loader.WithLogger(log.Named("loader"))}, opts...)
	if err := loader.Configure(loader.FromConfig(cfg.EngineConfig()), opts...); err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func (e env) exports(args []string) error {
	var common commonFlags
	fs := newFlagSet("exports", e.stderr)
	common.register(fs)

	_, log, err := e.setup(fs, &common, args)
	if err != nil {
		return helpOK(err)
	}
	defer log.Sync()

	ctx := context.Background()
	h, err := loader.Initialize(ctx)
	if err != nil {
		return err
	}
	defer loader.Close(ctx)

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	for _, name := range h.Capabilities() {
		exp, _ := h.Export(name)
		fmt.Fprintf(tw, "%s\t(%s)\t-> %s\n", name, typeList(exp.Params), typeList(exp.Results))
	}
	return tw.Flush()
}

func typeList(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}

func (e env) invoke(args []string) error {
	var (
		common   commonFlags
		argv     []string
		inputs   []string
		stdinTo  string
		result   string
		outDir   string
		filename string
	)
	fs := newFlagSet("invoke", e.stderr)
	fs.StringArrayVarP(&argv, "arg", "a", nil, "argument as kind:value, repeatable (i32, i64, f32, f64, text, input, output)")
	fs.StringArrayVar(&inputs, "input", nil, "stage a host file as vpath=file before the call, repeatable")
	fs.StringVar(&stdinTo, "stdin", "", "stage standard input at this virtual path")
	fs.StringVarP(&result, "result", "r", "", "result kind: void, status, string, i32, i64, f32, f64")
	fs.StringVarP(&outDir, "out-dir", "o", "", "write output buffers into this directory")
	fs.StringVar(&filename, "name", "", "file name for a single output buffer")
	common.register(fs)
	fs.Usage = func() {
		fmt.Fprintln(e.stderr, "Usage: enginebridge invoke <operation> [flags]")
		fs.PrintDefaults()
	}

	_, log, err := e.setup(fs, &common, args)
	if err != nil {
		return helpOK(err)
	}
	defer log.Sync()

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: invoke takes exactly one operation name", ErrUsage)
	}
	op := fs.Arg(0)

	kind, err := invoke.ParseResultKind(result)
	if err != nil {
		return err
	}
	callArgs := make([]invoke.Arg, 0, len(argv))
	for _, a := range argv {
		arg, err := invoke.ParseArg(a)
		if err != nil {
			return err
		}
		callArgs = append(callArgs, arg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := loader.Initialize(ctx)
	if err != nil {
		return err
	}
	defer loader.Close(context.Background())

	for _, in := range inputs {
		vpath, file, ok := strings.Cut(in, "=")
		if !ok || vpath == "" || file == "" {
			return fmt.Errorf("%w: --input %q is not vpath=file", ErrUsage, in)
		}
		data, err := transfer.FromFile(ctx, file)
		if err != nil {
			return err
		}
		if err := h.FS().Write(vpath, data); err != nil {
			return err
		}
	}
	if stdinTo != "" {
		data, err := transfer.FromHostSource(ctx, e.stdin)
		if err != nil {
			return err
		}
		if err := h.FS().Write(stdinTo, data); err != nil {
			return err
		}
	}

	out, err := invoke.Invoke(ctx, h, invoke.NewRequest(op, kind, callArgs...))
	if err != nil {
		return err
	}
	if out.Kind != invoke.Void {
		fmt.Fprintln(e.stdout, out.Value())
	}

	for _, p := range out.Outputs {
		data, err := h.FS().Read(p)
		if err != nil {
			return err
		}
		if outDir == "" {
			log.Info("output buffer", zap.String("path", p), zap.Int("size", len(data)))
			continue
		}
		name := path.Base(p)
		if filename != "" && len(out.Outputs) == 1 {
			name = filename
		}
		if err := transfer.ToHostSink(ctx, transfer.DirSink(outDir), data, name); err != nil {
			return err
		}
	}
	return nil
}

func (e env) serve(args []string) error {
	var (
		common commonFlags
		addr   string
		warm   bool
	)
	fs := newFlagSet("serve", e.stderr)
	fs.StringVar(&addr, "addr", "", "listen address (default from config, "+config.DefaultAddr+")")
	fs.BoolVar(&warm, "warm", true, "bootstrap the engine at startup instead of on the first request")
	common.register(fs)

	metrics := server.NewMetrics("")
	cfg, log, err := e.setup(fs, &common, args, loader.WithObserver(metrics.Observer()))
	if err != nil {
		return helpOK(err)
	}
	defer log.Sync()
	if fs.Changed("addr") {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if warm {
		go func() {
			if _, err := loader.Initialize(ctx); err != nil {
				log.Warn("engine bootstrap failed, will retry on demand", zap.Error(err))
			}
		}()
	}

	srv := server.New(loader.Default(), cfg.Server, server.WithMetrics(metrics), server.WithLogger(log.Named("server")))
	return srv.Serve(ctx)
}

// helpOK turns a --help request into success.
func helpOK(err error) error {
	if err == flag.ErrHelp {
		return nil
	}
	return err
}
