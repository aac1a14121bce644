// Copyright 2026 The Loomhaven Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Loom is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Loom. If not, see <http://www.gnu.org/licenses/>.

package persist

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"os"

	"github.com/golang/snappy"
	pkgerrors "github.com/pkg/errors"

	"github.com/loomhaven/loom/internal/object"
)

// snappyThreshold is the payload size above which WriteEviction
// Snappy-compresses the body, "storage
// optimization layered inside the exact byte layout".
const snappyThreshold = 256

const recordHeaderSize = 4 + 1 + 4 + 4 // handle + compressed flag + body length + crc32

// TransactionLog is the append-only file of evicted-dirty object
// payloads since the last checkpoint (glossary). It satisfies
// internal/cache.TransactionLog so a live Cache can page objects out
// through it directly.
type TransactionLog struct {
	f *os.File
}

// OpenTransactionLog opens (creating if absent) the log file at path
// for appending.
func OpenTransactionLog(path string) (*TransactionLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "persist: open transaction log")
	}
	return &TransactionLog{f: f}, nil
}

// WriteEviction appends one record for handle's evicted payload.
func (t *TransactionLog) WriteEviction(handle object.Handle, payload []byte) error {
	body := payload
	var compressed byte
	if len(payload) > snappyThreshold {
		body = snappy.Encode(nil, payload)
		compressed = 1
	}
	var hdr [recordHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(handle))
	hdr[4] = compressed
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(len(body)))
	binary.LittleEndian.PutUint32(hdr[9:13], crc32.ChecksumIEEE(body))
	if _, err := t.f.Write(hdr[:]); err != nil {
		return pkgerrors.Wrap(err, "persist: write transaction log record header")
	}
	if _, err := t.f.Write(body); err != nil {
		return pkgerrors.Wrap(err, "persist: write transaction log record body")
	}
	return nil
}

// Sync flushes the log to stable storage. WriteEviction does not call
// it.
func (t *TransactionLog) Sync() error { return t.f.Sync() }

// Truncate empties the log, called once a new checkpoint has absorbed
// every record it held.
func (t *TransactionLog) Truncate() error {
	if err := t.f.Truncate(0); err != nil {
		return pkgerrors.Wrap(err, "persist: truncate transaction log")
	}
	_, err := t.f.Seek(0, io.SeekStart)
	return err
}

func (t *TransactionLog) Close() error { return t.f.Close() }

// Record is one decoded transaction-log entry.
type Record struct {
	Handle  object.Handle
	Payload []byte
}

// ReadAll replays every record in the log at path from the beginning,
// used on restore to overlay the log atop the last checkpoint: later
// records for the same handle supersede earlier ones,
// "Restore". A missing file is not an error — a fresh database has no
// log yet.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "persist: open transaction log for replay")
	}
	defer f.Close()

	var out []Record
	for {
		var hdr [recordHeaderSize]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, pkgerrors.Wrap(err, "persist: truncated transaction log header")
		}
		handle := object.Handle(binary.LittleEndian.Uint32(hdr[0:4]))
		compressed := hdr[4] != 0
		bodyLen := binary.LittleEndian.Uint32(hdr[5:9])
		wantCRC := binary.LittleEndian.Uint32(hdr[9:13])

		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(f, body); err != nil {
			return nil, pkgerrors.Wrap(err, "persist: truncated transaction log body")
		}
		if crc32.ChecksumIEEE(body) != wantCRC {
			return nil, pkgerrors.New("persist: transaction log record failed CRC check")
		}
		if compressed {
			decoded, err := snappy.Decode(nil, body)
			if err != nil {
				return nil, pkgerrors.Wrap(err, "persist: snappy-decode transaction log record")
			}
			body = decoded
		}
		out = append(out, Record{Handle: handle, Payload: body})
	}
	return out, nil
}

// LatestByHandle collapses records to the last (most recent) payload
// per handle, the form the cache/engine actually wants on restore.
func LatestByHandle(records []Record) map[object.Handle][]byte {
	out := make(map[object.Handle][]byte, len(records))
	for _, r := range records {
		out[r.Handle] = r.Payload
	}
	return out
}
