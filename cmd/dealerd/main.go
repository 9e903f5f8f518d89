// dealerd is the table-engine daemon: it serves the HTTP action surface,
// consumes card scans from Kafka and pushes table-updated pokes to
// websocket and Kafka listeners.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/feltcraft/dealerd/pkg/notify"
	"github.com/feltcraft/dealerd/pkg/scanner"
	"github.com/feltcraft/dealerd/pkg/server"
)

type cli struct {
	DSN        string `help:"Database DSN: a SQLite file path or a postgres:// URL." default:"dealerd.sqlite"`
	Listen     string `help:"HTTP listen address." default:":8080"`
	DebugLevel string `help:"Log level: trace, debug, info, warn, error." default:"info"`

	KafkaBrokers []string `help:"Kafka broker addresses. Empty disables Kafka entirely."`
	ScanTopic    string   `help:"Topic carrying card-scan messages." default:"dealerd.scans"`
	ScanGroup    string   `help:"Consumer group id for the scan ingester." default:"dealerd"`
	PokeTopic    string   `help:"Topic for table-updated pokes." default:"dealerd.tables"`
}

func main() {
	var args cli
	kctx := kong.Parse(&args, kong.Name("dealerd"), kong.Description("Poker table engine daemon."))
	kctx.FatalIfErrorf(run(args))
}

func run(args cli) error {
	backend := slog.NewBackend(os.Stdout)
	level, ok := slog.LevelFromString(args.DebugLevel)
	if !ok {
		return fmt.Errorf("unknown debug level %q", args.DebugLevel)
	}
	newLogger := func(subsys string) slog.Logger {
		l := backend.Logger(subsys)
		l.SetLevel(level)
		return l
	}
	log := newLogger("MAIN")

	store, err := server.OpenStore(args.DSN, newLogger("STOR"))
	if err != nil {
		return err
	}
	defer store.Close()
	log.Infof("Store open (%s driver)", store.Driver())

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	metrics := server.NewMetrics(registry)

	hub := notify.NewHub(newLogger("NTFY"))
	notifiers := notify.Multi{hub}

	var kafkaNotifier *notify.KafkaNotifier
	if len(args.KafkaBrokers) > 0 {
		kafkaNotifier, err = notify.NewKafkaNotifier(args.KafkaBrokers, args.PokeTopic, newLogger("NTFY"))
		if err != nil {
			return fmt.Errorf("failed to connect Kafka producer: %v", err)
		}
		defer kafkaNotifier.Close()
		notifiers = append(notifiers, kafkaNotifier)
	}

	srv := server.New(server.Config{
		Store:    store,
		Notifier: notifiers,
		Log:      newLogger("SRVR"),
		Metrics:  metrics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	httpSrv := &http.Server{
		Addr:    args.Listen,
		Handler: srv.Router(hub, registry),
	}
	g.Go(func() error {
		log.Infof("HTTP listening on %s", args.Listen)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if len(args.KafkaBrokers) > 0 {
		ingester, err := scanner.New(scanner.Config{
			Brokers: args.KafkaBrokers,
			Topic:   args.ScanTopic,
			GroupID: args.ScanGroup,
			Sink:    srv,
			Log:     newLogger("SCAN"),
			Results: metrics.ScanMessages,
		})
		if err != nil {
			return fmt.Errorf("failed to connect scan consumer: %v", err)
		}
		g.Go(func() error {
			defer ingester.Close()
			err := ingester.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
		log.Infof("Scan ingester consuming %s as group %s", args.ScanTopic, args.ScanGroup)
	}

	err = g.Wait()
	if err == context.Canceled {
		err = nil
	}
	log.Infof("Shutdown complete")
	return err
}
