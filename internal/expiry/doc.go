// Package expiry holds the freshness and reminder rules for inventory items.
//
// Everything here is a pure function of its arguments. "Today" is always
// passed in by the caller; nothing in this package reads the clock, touches
// storage or sends anything. Callers persist whatever the functions mutate.
package expiry
