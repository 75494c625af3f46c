// Command replay prints archived lion sweep games turn by turn.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/brensch/lionsweep/logging"
	"github.com/brensch/lionsweep/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "Archive parquet file to replay")
	dir := fs.String("dir", "", "Replay every archive in this directory instead")
	verify := fs.Bool("verify", true, "Re-run each turn through the rules and report mismatches")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger, err := logging.New(stderr, *logLevel, "text")
	if err != nil {
		fmt.Fprintf(stderr, "replay: %v\n", err)
		return 2
	}

	var files []string
	switch {
	case *file != "":
		files = []string{*file}
	case *dir != "":
		if files, err = store.ListArchives(*dir); err != nil {
			logger.Error("list archives", "dir", *dir, "err", err)
			return 1
		}
	default:
		fmt.Fprintln(stderr, "replay: one of -file or -dir is required")
		fs.Usage()
		return 2
	}

	status := 0
	for _, path := range files {
		rows, err := store.ReadTurns(path)
		if err != nil {
			logger.Error("read archive", "path", path, "err", err)
			status = 1
			continue
		}
		g, err := store.DecodeGame(rows)
		if err != nil {
			logger.Error("decode archive", "path", path, "err", err)
			status = 1
			continue
		}
		logger.Debug("archive loaded", "path", path, "rows", len(rows), "recorded", rows[0].RecordedTime())

		printGame(stdout, path, g)
		if *verify {
			if err := g.Verify(); err != nil {
				logger.Error("archive does not match the rules", "path", path, "err", err)
				status = 1
				continue
			}
			logger.Info("archive verified", "path", path, "turns", len(g.Frames))
		}
	}
	return status
}

func printGame(w io.Writer, path string, g *store.Game) {
	fmt.Fprintf(w, "%s  session %s  %d nodes\n", path, g.SessionID, g.Graph.NodeCount())
	for _, f := range g.Frames {
		lions := make([]string, 0, len(f.Lions))
		for _, l := range f.Lions {
			lions = append(lions, fmt.Sprintf("%d@%s", l.ID, l.NodeID))
		}
		moves := make([]string, 0, len(f.Moves))
		for _, mv := range f.Moves {
			moves = append(moves, fmt.Sprintf("%d:%s→%s", mv.LionID, mv.From, mv.To))
		}
		movesStr := strings.Join(moves, ", ")
		if movesStr == "" {
			movesStr = "start"
		}
		if f.Dropped > 0 {
			movesStr += fmt.Sprintf(" (%d dropped)", f.Dropped)
		}
		fmt.Fprintf(w, "  Turn %3d | lions %s | %s | contaminated %d %v\n",
			f.Turn, strings.Join(lions, " "), movesStr, len(f.Contaminated), f.Contaminated.Sorted())
	}
	if last := g.Frames[len(g.Frames)-1]; len(last.Contaminated) == 0 {
		fmt.Fprintf(w, "  cleared in %d turns\n", last.Turn)
	}
}
