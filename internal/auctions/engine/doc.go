// Package engine allocates a fixed total rent across a fixed set of rooms.
//
// Every exported transition takes an Auction snapshot and returns a new one
// together with the events it produced. Inputs are never modified and no
// function here performs I/O, so callers are free to retry a transition
// against the same snapshot.
//
// Two settlement paths share the price normalizers:
//   - Round based: selections are grouped by ConflictDetector, contested
//     rooms are settled by sealed bids (BidResolver) and unassigned rooms
//     are re-priced so the rent always sums to TotalRent.
//   - Batch: ComputeFinal runs either the deferred-acceptance matcher or the
//     Hungarian solver over the submitted valuations and scales the winning
//     valuations to TotalRent.
//
// All price arithmetic happens in whole cents.
package engine
