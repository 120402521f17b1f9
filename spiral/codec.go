package spiral

import (
	"bufio"
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

const maxScanTokenSize = 10 * 1024 * 1024 // 10MB

// -----------------------------------------------------------------------------
// JSON bodies
// -----------------------------------------------------------------------------

// EncodeJSON serializes v as a single JSON document body.
func EncodeJSON(v any) (*StringStream, error) {
	data, err := jsonCodec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("spiral: encode json: %w", err)
	}
	return NewStream(data), nil
}

// EncodeJSONL serializes records as JSON Lines, one record per line.
func EncodeJSONL(records []any) (*StringStream, error) {
	var buf bytes.Buffer
	enc := jsonCodec.NewEncoder(&buf)
	for i, record := range records {
		if err := enc.Encode(record); err != nil {
			return nil, fmt.Errorf("spiral: encode jsonl record %d: %w", i, err)
		}
	}
	return NewStream(buf.Bytes()), nil
}

// DecodeJSONL reads every record of a JSON Lines body. Blank lines are
// skipped. The body is rewound first and left at its end.
func DecodeJSONL(body Stream) ([]any, error) {
	data, err := readBody("decode jsonl", body)
	if err != nil {
		return nil, err
	}

	var records []any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record any
		if err := jsonCodec.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("spiral: decode jsonl: %w", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("spiral: decode jsonl: %w", err)
	}
	return records, nil
}

// MarshalMetadata renders a metadata snapshot as indented JSON.
func MarshalMetadata(meta StreamMetadata) ([]byte, error) {
	return jsonCodec.MarshalIndent(meta, "", "  ")
}
