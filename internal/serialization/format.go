// Package serialization implements the .loom checkpoint container: magic
// bytes, a JSON header describing tensors and training state, 64-byte
// aligned tensor payload, and a SHA-256 trailer.
package serialization

import (
	"time"

	"github.com/loom-ml/loom/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "LOOM"
	FormatVersion   = 1
	HeaderAlignment = 64 // Align tensor data to 64 bytes
	ChecksumSize    = 32 // SHA-256 trailer
)

// Data type string constants for serialization.
const (
	DTypeFloat32 = "float32"
	DTypeInt32   = "int32"
	DTypeBool    = "bool"
)

// Header is the JSON header of a .loom file.
type Header struct {
	FormatVersion  int               `json:"format_version"`       // Version of the .loom format
	CreatedAt      time.Time         `json:"created_at"`           // When the file was created
	Tensors        []TensorMeta      `json:"tensors"`              // Tensor metadata
	Metadata       map[string]string `json:"metadata"`             // Custom metadata
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"` // Training state (optional)
}

// CheckpointMeta carries the training state a resumed run needs.
type CheckpointMeta struct {
	Epoch           int                `json:"epoch"`            // Training epoch number
	Step            int64              `json:"step"`             // Global training step
	Loss            float64            `json:"loss"`             // Loss value at checkpoint
	OptimizerType   string             `json:"optimizer_type"`   // Optimizer type ("SGD", "Adam")
	OptimizerConfig map[string]float64 `json:"optimizer_config"` // Optimizer hyperparameters
}

// TensorMeta describes one tensor in the payload.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "encoder.block0.ff.linear1.weight")
	DType  string `json:"dtype"`  // Data type ("float32", "int32", "bool")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// dtypeToString converts tensor.DataType to its string representation.
func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Int32:
		return DTypeInt32
	case tensor.Bool:
		return DTypeBool
	default:
		return "unknown"
	}
}

// stringToDtype converts a string representation to tensor.DataType.
func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeInt32:
		return tensor.Int32, true
	case DTypeBool:
		return tensor.Bool, true
	default:
		return 0, false
	}
}
