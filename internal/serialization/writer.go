package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/loom-ml/loom/internal/tensor"
)

// WriteFile writes a state dictionary to path in .loom format.
//
// Tensors are laid out in sorted name order so the same state dict always
// produces the same bytes. The header's Tensors field is filled in here;
// callers only set CheckpointMeta and Metadata.
//
// The whole file is assembled in memory before hitting disk: checkpoints
// are written atomically via a temp file rename, so a crash mid-save
// never leaves a half-written checkpoint behind.
func WriteFile(path string, stateDict map[string]*tensor.RawTensor, header Header) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header.FormatVersion = FormatVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	var currentOffset int64
	header.Tensors = make([]TensorMeta, 0, len(stateDict))
	for _, name := range names {
		raw := stateDict[name]
		size := int64(len(raw.Data()))
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape()),
			Offset: currentOffset,
			Size:   size,
		})
		currentOffset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(MagicBytes)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(FormatVersion)); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	buf.Write(headerJSON)

	padding := (HeaderAlignment - (buf.Len() % HeaderAlignment)) % HeaderAlignment
	buf.Write(make([]byte, padding))

	for _, name := range names {
		buf.Write(stateDict[name].Data())
	}

	checksum := ComputeChecksum(buf.Bytes())
	buf.Write(checksum[:])

	tmp := path + ".tmp"
	//nolint:gosec // G306: checkpoint files are not secrets
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}
	return nil
}
