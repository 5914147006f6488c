// Package reconcile decides, per observed comment, which write action the
// store must apply: create the entity with its first version, append a new
// version, mark deletion, or just refresh the last-seen timestamp.
//
// The differ is pure: it reads one observation plus the stored state and
// returns a Decision. All persistence semantics (transactions, pointer
// flips, idempotence) belong to the store writer.
//
// # Rules
//
//   - No stored entity: create entity and first version.
//   - Deletion sentinel observed and flag not yet set: mark deleted. This
//     wins over body comparison; the sentinel text is never versioned.
//   - Deletion flag already set (either side): no-op; history is frozen.
//   - Stored latest body differs from observed body (byte-exact): append.
//   - Otherwise: no-op (metadata and last-seen still refresh on apply).
package reconcile
