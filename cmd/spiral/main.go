// Command spiral sends, fetches, and inspects stream bodies.
//
// Usage:
//
//	spiral [global options] put <key> <file>
//	spiral [global options] get <key>
//	spiral [global options] list [prefix]
//	spiral [global options] stat <file>
//	spiral [global options] options
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/justapithecus/spiral/internal/cli"
	"github.com/justapithecus/spiral/internal/config"
	"github.com/justapithecus/spiral/internal/logging"
	"github.com/justapithecus/spiral/internal/metrics"
	"github.com/justapithecus/spiral/spiral"
	s3store "github.com/justapithecus/spiral/spiral/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// globalFlags holds options shared by every subcommand.
type globalFlags struct {
	configPath string
	store      string
	root       string
	noColor    bool
	verbose    bool

	// values maps option ids to raw flag values; only flags the user set
	// are applied.
	values map[spiral.OptionID]*string
	fs     *flag.FlagSet
}

var optionFlags = []struct {
	name  string
	id    spiral.OptionID
	usage string
}{
	{"region", spiral.OptionRegion, "S3 region (e.g. us-east-1, auto)"},
	{"endpoint", spiral.OptionEndpoint, "Custom S3 endpoint URL (MinIO, LocalStack, R2)"},
	{"bucket", spiral.OptionBucket, "S3 bucket name"},
	{"prefix", spiral.OptionPrefix, "Key prefix applied to every object"},
	{"compression", spiral.OptionCompression, "Body compression: noop, gzip, zstd"},
	{"app-id", spiral.OptionAppID, "Application id sent with requests"},
	{"credentials-file", spiral.OptionCredentialsFile, "Shared AWS credentials file"},
	{"ca-bundle", spiral.OptionCABundle, "PEM CA bundle for TLS"},
	{"path-style", spiral.OptionPathStyle, "Use path-style S3 addressing (true/false)"},
}

func parseGlobals(args []string, stderr io.Writer) (*globalFlags, []string, error) {
	g := &globalFlags{values: make(map[spiral.OptionID]*string)}
	fs := flag.NewFlagSet("spiral", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)

	fs.StringVarP(&g.configPath, "config", "c", "", "Path to a YAML config file")
	fs.StringVar(&g.store, "store", "", "Store backend: s3, fs, memory (default s3)")
	fs.StringVar(&g.root, "root", "", "Root directory for the fs store")
	fs.BoolVar(&g.noColor, "no-color", false, "Disable colored output")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	for _, of := range optionFlags {
		g.values[of.id] = fs.String(of.name, "", of.usage)
	}

	fs.Usage = func() {
		_, _ = fmt.Fprint(stderr, `Usage: spiral [options] <command> [args]

Commands:
  put <key> <file>   Send a file's contents under key
  get <key>          Fetch key and write it to stdout
  list [prefix]      List keys under prefix
  stat <file>        Print stream metadata for a file's contents
  options            Print the effective option values

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, err
		}
		return nil, nil, cli.NewInputError("Invalid arguments", err.Error(), "Run: spiral --help")
	}
	g.fs = fs
	return g, fs.Args(), nil
}

// options builds the validated option set: config file first, then flags.
func (g *globalFlags) options() (*spiral.Options, config.File, error) {
	opts := spiral.DefaultOptions()
	file := config.File{Store: "s3"}

	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return nil, file, cli.NewConfigError("Cannot load config file", "Check the --config path and YAML syntax", err)
		}
		if err := loaded.Apply(opts); err != nil {
			return nil, file, cli.Classify("Invalid value in config file", err)
		}
		file = loaded
	}

	for _, of := range optionFlags {
		if !g.fs.Changed(of.name) {
			continue
		}
		if err := opts.Set(of.id, *g.values[of.id]); err != nil {
			return nil, file, cli.Classify("Invalid --"+of.name, err)
		}
	}

	if g.store != "" {
		file.Store = g.store
	}
	if g.root != "" {
		file.Root = g.root
	}
	if err := config.Validate(file); err != nil {
		return nil, file, cli.NewConfigError("Invalid store selection", "Use --store s3|fs|memory; fs needs --root", err)
	}
	return opts, file, nil
}

func storeFactory(ctx context.Context, file config.File, opts *spiral.Options) (spiral.StoreFactory, error) {
	switch file.Store {
	case "memory":
		return spiral.NewMemoryFactory(), nil
	case "fs":
		return spiral.NewFSFactory(file.Root), nil
	default:
		s3cfg := s3store.ConfigFromOptions(opts)
		if s3cfg.Bucket == "" {
			return nil, cli.NewConfigError("No bucket configured", "Set --bucket or bucket in the config file", nil)
		}
		client, err := s3store.NewClient(ctx, s3store.ClientConfigFromOptions(opts))
		if err != nil {
			return nil, cli.NewNetworkError("Cannot create S3 client", "Check region, endpoint, and credentials", err)
		}
		return s3store.Factory(client, s3cfg), nil
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	g, rest, err := parseGlobals(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return cli.ExitSuccess
	}
	if err != nil {
		return cli.Report(stderr, err, true)
	}

	logCfg := logging.DefaultConfig(logging.ProfileRuntime)
	logging.ApplyEnv(&logCfg, os.Getenv)
	logCfg.Out = stderr
	logCfg.NoColor = logCfg.NoColor || g.noColor
	if g.verbose {
		logCfg.Level = zerolog.DebugLevel
	}
	logger := logging.NewWithConfig("spiral", logCfg)

	if err := dispatch(ctx, g, rest, stdout, logger); err != nil {
		return cli.Report(stderr, err, g.noColor)
	}
	return cli.ExitSuccess
}

func dispatch(ctx context.Context, g *globalFlags, args []string, stdout io.Writer, logger zerolog.Logger) error {
	if len(args) == 0 {
		g.fs.Usage()
		return cli.NewInputError("No command given", "", "Run: spiral --help")
	}
	cmd, cmdArgs := args[0], args[1:]

	// stat works on local files only and needs no store.
	if cmd == "stat" {
		return runStat(cmdArgs, stdout)
	}

	opts, file, err := g.options()
	if err != nil {
		return err
	}
	if cmd == "options" {
		return runOptions(opts, file, stdout)
	}

	factory, err := storeFactory(ctx, file, opts)
	if err != nil {
		return err
	}
	client, err := spiral.NewClient(factory,
		spiral.WithOptions(opts),
		spiral.WithLogger(logger),
		spiral.WithMetrics(metrics.Default()),
	)
	if err != nil {
		return cli.Classify("Cannot create client", err)
	}

	switch cmd {
	case "put":
		return runPut(ctx, client, cmdArgs, stdout)
	case "get":
		return runGet(ctx, client, cmdArgs, stdout)
	case "list":
		return runList(ctx, client, cmdArgs, stdout)
	default:
		return cli.NewInputError("Unknown command: "+cmd, "", "Run: spiral --help")
	}
}

func runPut(ctx context.Context, client *spiral.Client, args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return cli.NewInputError("put needs a key and a file", fmt.Sprintf("got %d arguments", len(args)), "spiral put <key> <file>")
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return cli.NewInputError("Cannot read "+args[1], err.Error(), "Check the file path and permissions")
	}

	body := spiral.NewStream(data)
	defer func() { _ = body.Close() }()

	receipt, err := client.Send(ctx, args[0], body)
	if err != nil {
		return cli.Classify("Cannot send "+args[0], err)
	}
	_, _ = fmt.Fprintf(stdout, "%s\t%d bytes\t%s\n", receipt.Key, receipt.Size, receipt.Compressor)
	return nil
}

func runGet(ctx context.Context, client *spiral.Client, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return cli.NewInputError("get needs a key", fmt.Sprintf("got %d arguments", len(args)), "spiral get <key>")
	}
	body, err := client.Fetch(ctx, args[0])
	if err != nil {
		return cli.Classify("Cannot fetch "+args[0], err)
	}
	defer func() { _ = body.Close() }()

	if _, err := io.Copy(stdout, body); err != nil {
		return cli.Classify("Cannot write output", err)
	}
	return nil
}

func runList(ctx context.Context, client *spiral.Client, args []string, stdout io.Writer) error {
	if len(args) > 1 {
		return cli.NewInputError("list takes at most one prefix", "", "spiral list [prefix]")
	}
	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	keys, err := client.List(ctx, prefix)
	if err != nil {
		return cli.Classify("Cannot list "+prefix, err)
	}
	for _, k := range keys {
		_, _ = fmt.Fprintln(stdout, k)
	}
	return nil
}

func runStat(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return cli.NewInputError("stat needs a file", "", "spiral stat <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return cli.NewInputError("Cannot read "+args[0], err.Error(), "Check the file path and permissions")
	}

	body := spiral.NewStream(data)
	defer func() { _ = body.Close() }()

	size, _ := body.Size()
	meta := body.Metadata()
	meta["size"] = size

	out, err := spiral.MarshalMetadata(meta)
	if err != nil {
		return cli.Classify("Cannot render metadata", err)
	}
	_, _ = fmt.Fprintln(stdout, string(out))
	return nil
}

func runOptions(opts *spiral.Options, file config.File, stdout io.Writer) error {
	_, _ = fmt.Fprintf(stdout, "store\t%s\n", file.Store)
	if file.Root != "" {
		_, _ = fmt.Fprintf(stdout, "root\t%s\n", file.Root)
	}
	for _, id := range opts.IDs() {
		_, _ = fmt.Fprintf(stdout, "%s\t%s\n", id, opts.Value(id))
	}
	return nil
}
