package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/gridworks/internal/engine"
)

// SnapshotHeader is the first line of a snapshot file, readable without
// decoding the body.
type SnapshotHeader struct {
	Version   int       `json:"version"`
	SessionID uuid.UUID `json:"session_id"`
	Tick      uint64    `json:"tick"`
	Entities  int       `json:"entities"`
}

// WriteSnapshot writes a zstd-compressed snapshot: a JSON header line
// followed by the JSON-encoded state.
func WriteSnapshot(path string, st engine.State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(SnapshotHeader{
		Version:   st.Version,
		SessionID: st.SessionID,
		Tick:      st.Tick,
		Entities:  len(st.Entities),
	})
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&st); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

// ReadSnapshot reads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (SnapshotHeader, engine.State, error) {
	var (
		hdr SnapshotHeader
		st  engine.State
	)
	f, err := os.Open(path)
	if err != nil {
		return hdr, st, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return hdr, st, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return hdr, st, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &hdr); err != nil {
		return hdr, st, fmt.Errorf("decode header: %w", err)
	}
	if err := json.NewDecoder(br).Decode(&st); err != nil {
		return hdr, st, fmt.Errorf("json decode: %w", err)
	}
	return hdr, st, nil
}
