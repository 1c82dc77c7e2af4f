// Package variant implements the dynamically-kinded values monitored by
// kryten and matched against rule bounds.
//
// A Value is one of Void, String, Integer or Floating. The set is sealed:
// only the types in this package implement Value.
//
// Two notions of sameness exist and must not be confused:
//
//   - Compare orders two values, coercing across kinds. A string compared
//     against a number is read as a number with C atof/atol rules, so an
//     unparsable string compares as 0.
//   - Equal is strict. It never coerces: Integer(5) and String("5") are not
//     Equal even though Compare reports them as ordered-equal.
//
// Void has no payload and participates in no comparison; any attempt
// returns ErrVoid.
package variant
