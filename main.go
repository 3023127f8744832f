// Program mqttwatch subscribes to an MQTT topic filter and keeps a live,
// filtered and masked terminal table of the latest message per topic.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"mqttwatch/buffer"
	"mqttwatch/config"
	"mqttwatch/filter"
	"mqttwatch/monitor"
	"mqttwatch/mqttclient"
	"mqttwatch/ui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "mqttwatch: %v\n", err)
		os.Exit(1)
	}
}

// Purpose: Wire config, logging, terminal, session and MQTT client.
// Key aspects: Every exit path restores the terminal before the error is
// printed; the console log sink is muted while the UI owns the screen.
// Upstream: main.
// Downstream: loadConfig, setupLogging, openTerminal, monitor.Session.Run.
func run(args []string) error {
	cfg, err := loadConfig(args, os.Stderr)
	if err != nil {
		return err
	}

	fanout, err := setupLogging(cfg.Logging, os.Stderr)
	log.SetFlags(0)
	log.SetOutput(fanout)
	defer fanout.Close()
	if err != nil {
		log.Printf("Logging: file sink disabled: %v", err)
	}
	log.Printf("Config: %s", cfg.Summary())

	engine := filter.NewEngine(filter.Options{
		Exclude:      cfg.Filter.Exclude,
		Include:      cfg.Filter.Include,
		IncludeMode:  cfg.IncludeMode(),
		RetainedOnly: cfg.RetainedOnly(),
	})
	if bad := engine.InvalidPatterns(); len(bad) > 0 {
		log.Printf("Filter: patterns that do not compile will never match: %q", bad)
	}
	log.Printf("Filter: %s", engine)
	masker := filter.NewMasker(cfg.Mask.Patterns, cfg.PreserveMode())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	screen, err := openTerminal(cfg.Display.UI)
	if err != nil {
		return err
	}
	fanout.SetConsole(nil)
	defer func() {
		if rerr := screen.Restore(); rerr != nil {
			log.Printf("Terminal: restore failed: %v", rerr)
		}
		fanout.SetConsole(os.Stderr)
	}()

	var keys <-chan ui.Key
	if src, ok := screen.(ui.KeySource); ok {
		keys = src.Keys()
	}

	queue := buffer.NewQueue(buffer.DefaultHighWater, buffer.DefaultLowWater)
	var session *monitor.Session
	client := mqttclient.NewClient(mqttclient.Options{
		Host:     cfg.Broker.Host,
		Port:     cfg.Broker.Port,
		Username: cfg.Broker.Username,
		Password: cfg.Broker.Password,
		ClientID: cfg.Broker.ClientID,
		Topic:    cfg.Broker.Topic,
		QoS:      byte(cfg.Broker.QoS),
		Timeout:  time.Duration(cfg.Broker.TimeoutSeconds) * time.Second,
	}, mqttclient.Handlers{
		OnMessage: func(label string, payload []byte, retained bool) { session.Deliver(label, payload, retained) },
		OnStatus:  func(status string, online bool) { session.SetStatus(status, online) },
		OnFatal:   func(err error) { session.Fail(err) },
	})
	session = monitor.New(monitor.Options{
		Engine:        engine,
		Masker:        masker,
		Queue:         queue,
		Terminal:      screen,
		Keys:          keys,
		Publisher:     client,
		ClearRetained: cfg.Display.ClearRetained,
		Sort:          cfg.SortKey(),
		LabelWidth:    cfg.Display.LabelWidth,
		PayloadWidth:  cfg.Display.PayloadWidth,
	})
	fanout.SetNotice(session.Notice)
	defer fanout.SetNotice(nil)

	// The session draws while the connection is being set up, so the
	// operator sees the "connecting" status and can quit early.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(runCtx)
		cancelRun()
	}()

	if err := client.Connect(runCtx); err != nil {
		cancelRun()
		if runErr := <-done; runErr != nil {
			return runErr
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	defer client.Stop()

	err = <-done
	metrics := session.Metrics()
	log.Printf("Session: %s labels, %s renders (%s forced), %s dropped",
		humanize.Comma(int64(session.Stored())),
		humanize.Comma(int64(metrics.Renders())),
		humanize.Comma(int64(metrics.ForcedRenders())),
		humanize.Comma(int64(queue.Dropped())))
	return err
}

// Purpose: Open the selected terminal backend.
// Key aspects: Both backends need an interactive terminal on stdin/stdout.
// Upstream: run.
// Downstream: ui.OpenTcellTerminal, ui.OpenANSITerminal.
func openTerminal(mode string) (ui.Terminal, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin and stdout must be a terminal")
	}
	switch mode {
	case config.UIANSI:
		return ui.OpenANSITerminal(os.Stdin, os.Stdout)
	default:
		return ui.OpenTcellTerminal()
	}
}
