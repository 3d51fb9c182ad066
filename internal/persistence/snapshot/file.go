package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// FileStore keeps the latest snapshot in a single zstd-compressed file.
// Writes go to a temp file in the same directory and are renamed into place,
// so a failed save never clobbers the previous snapshot.
type FileStore struct {
	Path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Save writes snap atomically. A ctx cancelled before the rename leaves the
// previous snapshot in place.
func (fs *FileStore) Save(ctx context.Context, snap V1) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(fs.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(fs.Path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := Encode(tmp, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, fs.Path); err != nil {
		return err
	}
	return syncDir(dir)
}

// syncDir flushes the directory entry so the rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	return nil
}

// Load reads the latest snapshot. ok is false when none has been written yet.
func (fs *FileStore) Load(_ context.Context) (snap V1, ok bool, err error) {
	f, err := os.Open(fs.Path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	defer f.Close()

	snap, err = Decode(f)
	if err != nil {
		return snap, false, err
	}
	return snap, true, nil
}

// Encode writes a header line followed by the JSON body, zstd-compressed.
func Encode(w io.Writer, snap V1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Decode reads a stream produced by Encode and rejects unknown versions.
func Decode(r io.Reader) (V1, error) {
	var snap V1
	dec, err := zstd.NewReader(r)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("parse header: %w", err)
	}
	if h.Version != CurrentVersion {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("json decode: %w", err)
	}
	return snap, nil
}
