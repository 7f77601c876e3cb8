// Package walog is the logical log: an append-only stream of typed
// commands, framed for corruption detection and replayed in order at
// recovery. Framing follows the teacher's WAL convention (magic +
// version + length + payload + crc, padded to an 8-byte boundary) with
// each frame's payload being one gob-encoded Command.
package walog

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"time"
)

const (
	walMagic   uint32 = 0x574c4b47 // "WLKG"
	walVersion uint32 = 1

	// headerSize is magic(4) + version(4) + seq(8) + length(4).
	headerSize = 4 + 4 + 8 + 4
	// trailerSize is the payload's crc32.
	trailerSize = 4
)

// ErrCorrupt is returned by Replay when a frame's magic, version, or
// checksum does not match.
type ErrCorrupt struct {
	Offset int64
	Reason string
}

func (e ErrCorrupt) Error() string {
	return fmt.Sprintf("walog: corrupt frame at offset %d: %s", e.Offset, e.Reason)
}

// Log is an append-only command log backed by a single file. Append is
// safe for concurrent use; Replay expects exclusive access to the log
// (it is used only during recovery, before the store starts serving
// requests).
type Log struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	nextSeq uint64
	logger  Logger
}

// Open opens (creating if necessary) the log file at path and scans it
// to recover the next sequence number.
func Open(path string, logger Logger) (*Log, error) {
	if logger == nil {
		logger = NopLogger{}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("walog: open %s: %w", path, err)
	}
	l := &Log{path: path, f: f, logger: logger}
	if err := l.recoverNextSeq(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) recoverNextSeq() error {
	var last uint64
	found := false
	err := l.replayLocked(0, func(seq uint64, _ Command) error {
		last = seq
		found = true
		return nil
	})
	if err != nil {
		return err
	}
	if found {
		l.nextSeq = last + 1
	}
	return nil
}

// Append encodes cmd, frames it, and writes it to the log, returning
// its log-relative sequence number.
func (l *Log) Append(cmd Command) (uint64, error) {
	if !cmd.Type.valid() {
		return 0, fmt.Errorf("walog: refusing to append unknown command type %d", cmd.Type)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cmd); err != nil {
		return 0, fmt.Errorf("walog: encode command: %w", err)
	}
	payload := buf.Bytes()

	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.nextSeq
	frame := buildFrame(seq, payload)

	if _, err := l.f.Seek(0, io.SeekEnd); err != nil {
		return 0, fmt.Errorf("walog: seek to end: %w", err)
	}
	if _, err := l.f.Write(frame); err != nil {
		return 0, fmt.Errorf("walog: write frame: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return 0, fmt.Errorf("walog: fsync: %w", err)
	}
	l.nextSeq++
	return seq, nil
}

func buildFrame(seq uint64, payload []byte) []byte {
	unpadded := headerSize + len(payload) + trailerSize
	pad := (8 - unpadded%8) % 8
	buf := make([]byte, unpadded+pad)

	binary.BigEndian.PutUint32(buf[0:4], walMagic)
	binary.BigEndian.PutUint32(buf[4:8], walVersion)
	binary.BigEndian.PutUint64(buf[8:16], seq)
	binary.BigEndian.PutUint32(buf[16:20], uint32(len(payload)))
	copy(buf[headerSize:], payload)
	crc := crc32.ChecksumIEEE(payload)
	binary.BigEndian.PutUint32(buf[headerSize+len(payload):headerSize+len(payload)+4], crc)
	return buf
}

// Replay streams every frame with sequence number >= from back to fn,
// in order. A non-nil error from fn stops replay and is returned.
func (l *Log) Replay(from uint64, fn func(seq uint64, cmd Command) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replayLocked(from, fn)
}

func (l *Log) replayLocked(from uint64, fn func(seq uint64, cmd Command) error) error {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("walog: seek to start: %w", err)
	}
	r := &countingReader{r: l.f}

	for {
		header := make([]byte, headerSize)
		n, err := io.ReadFull(r, header)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if n == 0 || err == io.ErrUnexpectedEOF {
				return nil // trailing partial write from a crash mid-append
			}
			return fmt.Errorf("walog: read header: %w", err)
		}

		offset := r.n - int64(headerSize)
		magic := binary.BigEndian.Uint32(header[0:4])
		version := binary.BigEndian.Uint32(header[4:8])
		seq := binary.BigEndian.Uint64(header[8:16])
		length := binary.BigEndian.Uint32(header[16:20])

		if magic != walMagic {
			return ErrCorrupt{Offset: offset, Reason: "bad magic"}
		}
		if version != walVersion {
			return ErrCorrupt{Offset: offset, Reason: fmt.Sprintf("unknown wal version %d", version)}
		}

		payload := make([]byte, length)
		trailer := make([]byte, trailerSize)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil // truncated trailing frame
		}
		if _, err := io.ReadFull(r, trailer); err != nil {
			return nil
		}
		wantCRC := binary.BigEndian.Uint32(trailer)
		if crc32.ChecksumIEEE(payload) != wantCRC {
			return ErrCorrupt{Offset: offset, Reason: "checksum mismatch"}
		}

		unpadded := headerSize + int(length) + trailerSize
		pad := (8 - unpadded%8) % 8
		if pad > 0 {
			if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil {
				return nil
			}
		}

		if seq < from {
			continue
		}

		var cmd Command
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&cmd); err != nil {
			return fmt.Errorf("walog: decode command at seq %d: %w", seq, err)
		}
		if !cmd.Type.valid() {
			return fmt.Errorf("walog: unknown command type %d at seq %d", cmd.Type, seq)
		}

		if err := fn(seq, cmd); err != nil {
			return err
		}
	}
}

// Rotate closes the active segment and renames it aside, then opens a
// fresh file at the original path. Sequence numbering continues
// unbroken across the rotation. Used by the master coordinator's store
// copy path so a slave streaming the store files sees a quiesced log.
func (l *Log) Rotate() (sealedPath string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.f.Close(); err != nil {
		return "", fmt.Errorf("walog: close active segment: %w", err)
	}
	sealedPath = fmt.Sprintf("%s.%d", l.path, time.Now().UnixNano())
	if err := os.Rename(l.path, sealedPath); err != nil {
		return "", fmt.Errorf("walog: seal segment: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return "", fmt.Errorf("walog: open fresh segment: %w", err)
	}
	l.f = f
	l.logger.Log("info", "rotated logical log", map[string]any{"sealed": sealedPath})
	return sealedPath, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
