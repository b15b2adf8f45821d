// Package raster owns the in-memory data model shared by every stage of the
// spectral pipeline.
//
// Responsibilities: band and index grids, boolean class masks, small-integer
// change-category grids, the opaque metadata profile that travels with them,
// and the shape checks every operation performs before touching pixels.
// Key types: Grid, Mask, CategoryGrid, Profile.
//
// A pixel that cannot be computed carries the Undefined marker (NaN). Code
// outside this package must test for it with IsUndefined rather than
// comparing against NaN directly.
//
// No file I/O is allowed in this package; see internal/bandio.
package raster
