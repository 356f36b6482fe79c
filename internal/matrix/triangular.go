package matrix

import (
	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/tile"
)

// TriangularMatrix is a restricted view over a Matrix's tile store that
// materially addresses only the tiles on or above/below the diagonal,
// per uplo. It embeds *Matrix so every distributed-matrix operation
// (Sub, TileBcast, Transpose, ...) is available unchanged; mirrors
// SLATE's TriangularMatrix being a thin wrapper over Matrix rather than
// separate storage.
type TriangularMatrix[S tile.Scalar] struct {
	*Matrix[S]
	Uplo kernel.Uplo
	Diag kernel.Diag
}

// NewTriangularMatrix wraps m as a triangular view. m is not copied;
// out-of-band tiles (the unstored triangle) remain addressable through
// the embedded Matrix but are the caller's responsibility not to treat
// as meaningful.
func NewTriangularMatrix[S tile.Scalar](m *Matrix[S], uplo kernel.Uplo, diag kernel.Diag) *TriangularMatrix[S] {
	return &TriangularMatrix[S]{Matrix: m, Uplo: uplo, Diag: diag}
}

// TileIsStored reports whether tile (i, j) of this view lies in the
// materially stored triangle for this matrix's Uplo.
func (t *TriangularMatrix[S]) TileIsStored(i, j int) bool {
	if t.Uplo == kernel.Lower {
		return i >= j
	}
	return i <= j
}

// Transpose returns a TriangularMatrix view with the underlying Matrix
// transposed and Uplo flipped, since transposing a lower-triangular
// matrix yields an upper-triangular one.
func (t *TriangularMatrix[S]) Transpose() *TriangularMatrix[S] {
	flipped := kernel.Upper
	if t.Uplo == kernel.Upper {
		flipped = kernel.Lower
	}
	return &TriangularMatrix[S]{Matrix: t.Matrix.Transpose(), Uplo: flipped, Diag: t.Diag}
}

// HermitianMatrix is a restricted Hermitian/symmetric view over a
// Matrix's tile store, storing only the uplo triangle. Real scalar
// types make this a symmetric view; complex types, Hermitian.
type HermitianMatrix[S tile.Scalar] struct {
	*Matrix[S]
	Uplo kernel.Uplo
}

// NewHermitianMatrix wraps m as a Hermitian/symmetric view.
func NewHermitianMatrix[S tile.Scalar](m *Matrix[S], uplo kernel.Uplo) *HermitianMatrix[S] {
	return &HermitianMatrix[S]{Matrix: m, Uplo: uplo}
}

// TileIsStored reports whether tile (i, j) of this view lies in the
// materially stored triangle.
func (h *HermitianMatrix[S]) TileIsStored(i, j int) bool {
	if h.Uplo == kernel.Lower {
		return i >= j
	}
	return i <= j
}

// At returns the logical element at global (row, col), reflecting
// across the diagonal and conjugating when (row, col) falls in the
// unstored triangle, completing the Hermitian/symmetric view.
func (h *HermitianMatrix[S]) At(row, col int) (S, error) {
	storedRow, storedCol := row, col
	needConj := false
	if h.Uplo == kernel.Lower && row < col {
		storedRow, storedCol = col, row
		needConj = true
	} else if h.Uplo == kernel.Upper && row > col {
		storedRow, storedCol = col, row
		needConj = true
	}
	v, err := h.Matrix.At(storedRow, storedCol)
	if err != nil {
		return v, err
	}
	if needConj {
		v = tile.ConjScalar(v)
	}
	return v, nil
}

// ConjTranspose of a Hermitian matrix is itself, by definition; this
// returns a view equal to h (composing to the identity, generalizing
// the real-matrix rule that conjTranspose degenerates to transpose into
// "conjTranspose of a Hermitian matrix is a no-op").
func (h *HermitianMatrix[S]) ConjTranspose() *HermitianMatrix[S] {
	return &HermitianMatrix[S]{Matrix: h.Matrix, Uplo: h.Uplo}
}
