package plot

import "math/big"

// SquareToLinePoint maps a pair of k-bit table positions into a single
// line point of up to 2k bits (§3 invariant 2, §4.7), folding the square
// x-y plane into the triangle where y < x so that only one coordinate's
// full width need be stored. It always returns the same point regardless
// of argument order. Equal coordinates lie outside that triangle: (x, x)
// maps to the same point as (x+1, 0).
func SquareToLinePoint(x, y uint64) *big.Int {
	if y > x {
		x, y = y, x
	}
	if x == 0 {
		return big.NewInt(0)
	}
	bx := new(big.Int).SetUint64(x)
	bx1 := new(big.Int).SetUint64(x - 1)
	prod := bx.Mul(bx, bx1)
	prod.Rsh(prod, 1) // x*(x-1) is always even
	return prod.Add(prod, new(big.Int).SetUint64(y))
}

// LinePointToSquare inverts SquareToLinePoint, recovering (x, y) with
// y < x. It does not recover which coordinate was originally the larger
// one if the caller folded x and y itself before encoding.
func LinePointToSquare(index *big.Int) (x, y uint64) {
	var bigX big.Int
	one := big.NewInt(1)
	for i := 63; i >= 0; i-- {
		candidate := new(big.Int).Add(&bigX, new(big.Int).Lsh(one, uint(i)))
		t := new(big.Int).Mul(candidate, new(big.Int).Sub(candidate, one))
		t.Rsh(t, 1)
		if t.Cmp(index) <= 0 {
			bigX.Set(candidate)
		}
	}
	x = bigX.Uint64()
	tx := new(big.Int).Mul(&bigX, new(big.Int).Sub(&bigX, one))
	tx.Rsh(tx, 1)
	yBig := new(big.Int).Sub(index, tx)
	return x, yBig.Uint64()
}
