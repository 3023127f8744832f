package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"mqttwatch/config"
)

// cliOptions holds raw flag values. Only flags the operator actually set
// override the config file.
type cliOptions struct {
	configPath    string
	topic         string
	host          string
	port          int
	username      string
	password      string
	clientID      string
	qos           int
	timeout       int
	exclude       []string
	include       []string
	includeMode   string
	mask          []string
	preserve      string
	sort          string
	mode          string
	clearRetained bool
	ui            string
	logDir        string
	help          bool
}

func newFlagSet(opts *cliOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("mqttwatch", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.StringVar(&opts.configPath, "config", "", "YAML config file; flags override its values")
	fs.StringVarP(&opts.topic, "topic", "t", "", "topic filter to subscribe to (default \"#\")")
	fs.StringVarP(&opts.host, "host", "H", "", "broker host or URL (default \"localhost\")")
	fs.IntVar(&opts.port, "port", 0, "broker port (default 1883)")
	fs.StringVarP(&opts.username, "username", "u", "", "broker user name")
	fs.StringVarP(&opts.password, "password", "P", "", "broker password")
	fs.StringVar(&opts.clientID, "client-id", "", "MQTT client id (default mqttwatch-<random>)")
	fs.IntVar(&opts.qos, "qos", 0, "subscription and clear QoS (0-2)")
	fs.IntVar(&opts.timeout, "timeout", 0, "connect/subscribe timeout in seconds (default 10)")
	fs.StringArrayVarP(&opts.exclude, "exclude", "x", nil, "drop topics matching pattern (repeatable)")
	fs.StringArrayVarP(&opts.include, "include", "i", nil, "keep only messages matching pattern (repeatable)")
	fs.StringVar(&opts.includeMode, "include-mode", "", "what include patterns test: label, payload or both")
	fs.StringArrayVar(&opts.mask, "mask", nil, "redact payload text matching pattern (repeatable)")
	fs.StringVar(&opts.preserve, "preserve", "", "characters kept visible when masking: none, first4, last4 or both4")
	fs.StringVar(&opts.sort, "sort", "", "initial sort: time or label")
	fs.StringVar(&opts.mode, "mode", "", "live (all messages) or retained (retained only)")
	fs.BoolVar(&opts.clearRetained, "clear-retained", false, "clear each retained message after it is shown")
	fs.StringVar(&opts.ui, "ui", "", "terminal backend: tcell or ansi")
	fs.StringVar(&opts.logDir, "log-dir", "", "write daily log files to this directory")
	fs.BoolVarP(&opts.help, "help", "h", false, "show help")
	return fs
}

// loadConfig parses args, layers them over the optional config file and
// validates the result. It returns pflag.ErrHelp when help was requested.
func loadConfig(args []string, stderr io.Writer) (*config.Config, error) {
	var opts cliOptions
	fs := newFlagSet(&opts)
	fs.SetOutput(stderr)
	fs.Usage = func() {}
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stderr, fs)
		}
		return nil, err
	}
	if opts.help {
		printHelp(stderr, fs)
		return nil, pflag.ErrHelp
	}
	if rest := fs.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyFlags(cfg, fs, &opts)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, fs *pflag.FlagSet, opts *cliOptions) {
	set := func(name string) bool { return fs.Changed(name) }
	if set("topic") {
		cfg.Broker.Topic = opts.topic
	}
	if set("host") {
		cfg.Broker.Host = opts.host
	}
	if set("port") {
		cfg.Broker.Port = opts.port
	}
	if set("username") {
		cfg.Broker.Username = opts.username
	}
	if set("password") {
		cfg.Broker.Password = opts.password
	}
	if set("client-id") {
		cfg.Broker.ClientID = opts.clientID
	}
	if set("qos") {
		cfg.Broker.QoS = opts.qos
	}
	if set("timeout") {
		cfg.Broker.TimeoutSeconds = opts.timeout
	}
	if set("exclude") {
		cfg.Filter.Exclude = opts.exclude
	}
	if set("include") {
		cfg.Filter.Include = opts.include
	}
	if set("include-mode") {
		cfg.Filter.IncludeMode = opts.includeMode
	}
	if set("mask") {
		cfg.Mask.Patterns = opts.mask
	}
	if set("preserve") {
		cfg.Mask.Preserve = opts.preserve
	}
	if set("sort") {
		cfg.Display.Sort = opts.sort
	}
	if set("mode") {
		cfg.Display.Mode = opts.mode
	}
	if set("clear-retained") {
		cfg.Display.ClearRetained = opts.clearRetained
	}
	if set("ui") {
		cfg.Display.UI = opts.ui
	}
	if set("log-dir") {
		cfg.Logging.Dir = opts.logDir
	}
}

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `mqttwatch shows the latest message of every topic under a subscription
as a live table, with include/exclude filtering and payload masking.

Usage:
  mqttwatch [flags]

Patterns:
  err*      prefix          *log      suffix
  a*b       wildcard (case-insensitive)
  text      substring (case-sensitive)

Keys:
  %s

Flags:
`, "a auto  r render  s/t/l sort  < > label width  - + payload width\n  h highlight  m mask  d detail  q or Ctrl-C quit")
	fs.PrintDefaults()
}
