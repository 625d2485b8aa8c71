package conn

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/gzip"

	"github.com/fleetlink/fleetlink/pkg/types"
)

// encodeSnapshotPayload serializes a snapshot payload array as JSON, gzips
// it, and base64-encodes the result for the fleet_data message.
func encodeSnapshotPayload(payloads []types.Document) (string, error) {
	raw, err := json.Marshal(payloads)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot payload: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("compress snapshot payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress snapshot payload: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeSnapshotPayload reverses encodeSnapshotPayload. Kept alongside the
// encoder so the format has a self-contained round trip for tests.
func decodeSnapshotPayload(encoded string) ([]types.Document, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot payload: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot payload: %w", err)
	}
	defer zr.Close()

	var payloads []types.Document
	if err := json.NewDecoder(zr).Decode(&payloads); err != nil {
		return nil, fmt.Errorf("parse snapshot payload: %w", err)
	}
	return payloads, nil
}
