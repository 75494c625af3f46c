// Command console plays a lion sweep game in the terminal.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/lionsweep/catalog"
	"github.com/brensch/lionsweep/config"
	"github.com/brensch/lionsweep/game"
	"github.com/brensch/lionsweep/logging"
	"github.com/brensch/lionsweep/session"
	"github.com/brensch/lionsweep/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	graphName := fs.String("graph", "example", "Catalog graph to play")
	graphFile := fs.String("graph-file", "", "Graph JSON file to play instead of a catalog graph")
	configPath := fs.String("config", "", "Optional YAML configuration (log level and archive settings are used)")
	logFile := fs.String("log-file", "", "Write logs here; the terminal belongs to the board")
	archiveDir := fs.String("archive-dir", "", "Record turns to parquet files in this directory")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "console: %v\n", err)
			return 1
		}
	}

	logger := logging.Discard()
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "console: open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		if logger, err = logging.New(f, string(cfg.Server.LogLevel), string(cfg.Server.LogFormat)); err != nil {
			fmt.Fprintf(os.Stderr, "console: %v\n", err)
			return 1
		}
	}

	title, g, err := loadGraph(*graphName, *graphFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		return 1
	}

	events := make(chan session.Event, 64)
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithListener(forward(events, logger)),
	}
	dir := *archiveDir
	if dir == "" && cfg.Archive.Enabled {
		dir = cfg.Archive.Dir
	}
	if dir != "" {
		rec := store.NewRecorder(dir, cfg.Archive.FlushTurns, logger)
		opts = append(opts, session.WithListener(rec.Listen))
	}

	sess := session.New("console", opts...)
	if err := sess.LoadGraph(g); err != nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		return 1
	}

	p := tea.NewProgram(newModel(sess, title, events), tea.WithAltScreen())
	_, err = p.Run()
	sess.Close()
	if err != nil {
		logger.Error("console failed", "err", err)
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		return 1
	}
	return 0
}

func loadGraph(name, file string) (string, *game.Graph, error) {
	if file == "" {
		g, err := catalog.Default().Load(name)
		return name, g, err
	}
	f, err := os.Open(file)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	g, err := game.ParseGraph(f)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", file, err)
	}
	return filepath.Base(file), g, nil
}

// forward hands events to the bubbletea loop without ever blocking the
// session. The close event is the last one, so it closes the channel.
func forward(events chan session.Event, log *slog.Logger) session.Listener {
	return func(ev session.Event) {
		if ev.Kind == session.EventClosed {
			close(events)
			return
		}
		select {
		case events <- ev:
		default:
			log.Warn("console event dropped", "kind", ev.Kind, "version", ev.Snapshot.Version)
		}
	}
}
