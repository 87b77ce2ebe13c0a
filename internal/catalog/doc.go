// Package catalog persists lecture video assets and their HLS encoding state.
//
// The Store owns the hls_status lifecycle: none -> pending -> processing ->
// completed|failed, with completed and failed re-enterable through pending.
// Every transition is one conditional UPDATE so the database, not the caller,
// decides whether a move is legal; the schema's CHECK constraints keep the
// manifest, error and timestamp fields consistent with the status.
//
// Asset CRUD beyond registration belongs to the wider platform; this package
// only carries the fields the conversion pipeline reads and writes.
package catalog
