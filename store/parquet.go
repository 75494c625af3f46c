// Package store archives played games as Parquet files, one row per turn.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// SchemaVersion is written into the file metadata under "schema".
const SchemaVersion = "lionsweep_turn_v1"

// TurnRow is a single (session, turn) snapshot.
//
// Turn 0 is the position at the moment the simulation started. GraphJSON
// holds the graph record and is only set on the first row of each file, so
// every file can be replayed on its own.
type TurnRow struct {
	SessionID  string `parquet:"session_id,dict"`
	Turn       int32  `parquet:"turn"`
	RecordedAt int64  `parquet:"recorded_at_ns"`

	GraphJSON []byte `parquet:"graph_json,optional,zstd"`

	Lions        []ArchiveLion `parquet:"lions"`
	Moves        []ArchiveMove `parquet:"moves"`
	Dropped      int32         `parquet:"dropped"`
	Contaminated []string      `parquet:"contaminated"`
}

type ArchiveLion struct {
	ID     int32  `parquet:"id"`
	NodeID string `parquet:"node_id,dict"`
}

// ArchiveMove is a move applied during the turn that produced the row.
type ArchiveMove struct {
	LionID int32  `parquet:"lion_id"`
	From   string `parquet:"from,dict"`
	To     string `parquet:"to,dict"`
}

// RecordedTime returns RecordedAt as a time.
func (r TurnRow) RecordedTime() time.Time {
	return time.Unix(0, r.RecordedAt)
}

// WriteTurns writes rows to outPath through a temp file and an atomic rename.
func WriteTurns(outPath string, rows []TurnRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := writeParquet(tmpPath, rows); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteTurnsAtomic writes rows into outDir/tmp and then moves the file to
// outDir/<sessionID>_<unix_nano>.parquet, so readers never observe a
// partially written file. The final path is returned.
func WriteTurnsAtomic(outDir, sessionID string, rows []TurnRow) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id is required")
	}
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("%s_%d.parquet", sessionID, time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := writeParquet(tmpPath, rows); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

func writeParquet(path string, rows []TurnRow) error {
	if err := parquet.WriteFile(path, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("graph_json"),
		parquet.KeyValueMetadata("schema", SchemaVersion),
	); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}

// ReadTurns loads every row of an archive file in file order.
func ReadTurns(path string) ([]TurnRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	if schema, ok := pf.Lookup("schema"); ok && schema != SchemaVersion {
		return nil, fmt.Errorf("%s: unsupported schema %q", path, schema)
	}

	reader := parquet.NewGenericReader[TurnRow](pf)
	defer reader.Close()

	out := make([]TurnRow, 0, int(reader.NumRows()))
	for {
		// Fresh buffer each pass: the reader may reuse nested slices.
		buf := make([]TurnRow, 256)
		n, err := reader.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet: %w", err)
		}
	}
	return out, nil
}

// ListArchives returns the .parquet files directly under dir, oldest name first.
func ListArchives(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
