package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/loom-ml/loom/internal/tensor"
)

const fixedPreamble = 4 + 4 + 8 // magic + version + header size

// ReadFile reads a .loom file, verifies its checksum, and reconstructs
// the state dictionary.
func ReadFile(path string) (Header, map[string]*tensor.RawTensor, error) {
	//nolint:gosec // G304: checkpoint paths come from configuration
	blob, err := os.ReadFile(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if len(blob) < fixedPreamble+ChecksumSize {
		return Header{}, nil, fmt.Errorf("%s: %w", path, ErrTruncated)
	}

	// Checksum trailer covers everything before it.
	body := blob[:len(blob)-ChecksumSize]
	var stored [32]byte
	copy(stored[:], blob[len(blob)-ChecksumSize:])
	if err := ValidateChecksum(ComputeChecksum(body), stored); err != nil {
		return Header{}, nil, fmt.Errorf("%s: %w", path, err)
	}

	if string(body[:4]) != MagicBytes {
		return Header{}, nil, fmt.Errorf("%s: %w", path, ErrInvalidMagic)
	}
	version := binary.LittleEndian.Uint32(body[4:8])
	if version != FormatVersion {
		return Header{}, nil, fmt.Errorf("%s: version %d: %w", path, version, ErrUnsupportedVersion)
	}

	headerSize := binary.LittleEndian.Uint64(body[8:16])
	if uint64(len(body)) < fixedPreamble+headerSize {
		return Header{}, nil, fmt.Errorf("%s: %w", path, ErrTruncated)
	}

	var header Header
	if err := json.Unmarshal(body[fixedPreamble:fixedPreamble+headerSize], &header); err != nil {
		return Header{}, nil, fmt.Errorf("failed to parse header: %w", err)
	}

	dataStart := int64(fixedPreamble) + int64(headerSize) //nolint:gosec // G115: header size bounded by file size
	dataStart += (HeaderAlignment - (dataStart % HeaderAlignment)) % HeaderAlignment
	data := body[dataStart:]

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		dt, ok := stringToDtype(meta.DType)
		if !ok {
			return Header{}, nil, fmt.Errorf("tensor %q: unknown dtype %q", meta.Name, meta.DType)
		}
		if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > int64(len(data)) {
			return Header{}, nil, fmt.Errorf("tensor %q: %w", meta.Name, ErrOutOfBounds)
		}

		raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dt, tensor.CPU)
		if err != nil {
			return Header{}, nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		if int64(raw.ByteSize()) != meta.Size {
			return Header{}, nil, fmt.Errorf("tensor %q: size %d does not match shape %v", meta.Name, meta.Size, meta.Shape)
		}
		copy(raw.Data(), data[meta.Offset:meta.Offset+meta.Size])
		stateDict[meta.Name] = raw
	}

	return header, stateDict, nil
}
