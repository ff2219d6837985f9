// Package cache persists and validates timeline snapshots.
package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bullbot/history/pkg/types"
	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"
)

// Blob layout:
//   - 4 bytes: magic "HSN1"
//   - 4 bytes: murmur3 32-bit checksum of the payload (uint32, little-endian)
//   - remaining: snappy(JSON snapshot)
var blobMagic = []byte("HSN1")

const headerSize = 8

// ErrCorruptBlob is returned when a blob fails framing or checksum checks.
var ErrCorruptBlob = errors.New("cache: corrupt snapshot blob")

// EncodeSnapshot serializes a snapshot into the blob layout.
func EncodeSnapshot(snap *types.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("cache: nil snapshot")
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("cache: marshal snapshot: %w", err)
	}

	payload := snappy.Encode(nil, raw)

	buf := make([]byte, headerSize+len(payload))
	copy(buf[0:4], blobMagic)
	binary.LittleEndian.PutUint32(buf[4:8], murmur3.Sum32(payload))
	copy(buf[headerSize:], payload)
	return buf, nil
}

// DecodeSnapshot parses a blob produced by EncodeSnapshot.
// All timestamps in the result are in UTC.
func DecodeSnapshot(data []byte) (*types.Snapshot, error) {
	if len(data) < headerSize || !bytes.Equal(data[0:4], blobMagic) {
		return nil, fmt.Errorf("%w: bad header", ErrCorruptBlob)
	}

	payload := data[headerSize:]
	if want, got := binary.LittleEndian.Uint32(data[4:8]), murmur3.Sum32(payload); want != got {
		return nil, fmt.Errorf("%w: checksum %08x, want %08x", ErrCorruptBlob, got, want)
	}

	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy decompress failed: %v", ErrCorruptBlob, err)
	}

	var snap types.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", ErrCorruptBlob, err)
	}

	snap.UpdatedAt = snap.UpdatedAt.UTC()
	for i := range snap.History {
		snap.History[i].CreatedAt = snap.History[i].CreatedAt.UTC()
	}
	return &snap, nil
}
