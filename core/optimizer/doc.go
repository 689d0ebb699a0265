// Package optimizer picks the cheapest start time for an appliance run.
//
// The tariff is read as a sequence of consecutive settlement slots starting at
// the horizon. A usage pattern of K weights is slid across it one slot at a
// time; the cost of an offset is the dot product of the K prices under the
// window with the pattern, pattern[0] applying to the first slot of the run.
// Windows that would run past the end of the tariff, or across a hole in it,
// are never evaluated. On equal cost the earliest offset wins.
package optimizer
