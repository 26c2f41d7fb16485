package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/loom-ml/loom/internal/parallel"
	"github.com/loom-ml/loom/internal/tensor"
)

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) -> (M, N).
// Dispatches to gonum's SGEMM.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]

	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("matmul: unsupported dtypes %s, %s", a.DType(), b.DType()))
	}

	result, err := tensor.NewRaw(tensor.Shape{m, n}, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	sgemm(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)

	return result
}

// BatchMatMul performs batched matrix multiplication for 3D/4D tensors:
// [B, M, K] @ [B, K, N] -> [B, M, N] and [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N].
// Each batch matrix is an independent SGEMM; they fan out across workers.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	ndim := len(aShape)
	if ndim != 3 && ndim != 4 {
		panic(fmt.Sprintf("batchmatmul: only 3D/4D tensors supported, got %dD", ndim))
	}
	if len(bShape) != ndim {
		panic(fmt.Sprintf("batchmatmul: rank mismatch %dD @ %dD", ndim, len(bShape)))
	}
	for d := 0; d < ndim-2; d++ {
		if aShape[d] != bShape[d] {
			panic(fmt.Sprintf("batchmatmul: batch dims mismatch %v @ %v", aShape, bShape))
		}
	}
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("batchmatmul: unsupported dtypes %s, %s", a.DType(), b.DType()))
	}

	m, k := aShape[ndim-2], aShape[ndim-1]
	kAlt, n := bShape[ndim-2], bShape[ndim-1]
	if k != kAlt {
		panic(fmt.Sprintf("batchmatmul: inner dims mismatch %v @ %v", aShape, bShape))
	}

	outShape := aShape.Clone()
	outShape[ndim-1] = n
	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("batchmatmul: failed to create result tensor: %v", err))
	}

	aData := a.AsFloat32()
	bData := b.AsFloat32()
	cData := result.AsFloat32()

	step := func(i int) {
		sgemm(cData[i*m*n:(i+1)*m*n], aData[i*m*k:(i+1)*m*k], bData[i*k*n:(i+1)*k*n], m, k, n)
	}

	cfg := cpu.par
	cfg.MinChunkSize = 1 // One SGEMM per item is already coarse enough.
	if ndim == 4 {
		// [batch, heads, ...]: the attention layout.
		heads := aShape[1]
		parallel.ForBatch(aShape[0], heads, func(bi, hi int) {
			step(bi*heads + hi)
		}, cfg)
	} else {
		parallel.For(aShape[0], step, cfg)
	}

	return result
}

// sgemm computes C = A @ B for row-major float32 matrices.
func sgemm(c, a, b []float32, m, k, n int) {
	ga := blas32.General{Rows: m, Cols: k, Stride: k, Data: a}
	gb := blas32.General{Rows: k, Cols: n, Stride: n, Data: b}
	gc := blas32.General{Rows: m, Cols: n, Stride: n, Data: c}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, ga, gb, 0, gc)
}
