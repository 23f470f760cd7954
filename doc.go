// Package lanes provides Lindas, the rendezvous primitive independent
// workers use to hand values to each other and coordinate without sharing
// memory directly. A Universe owns a fixed pool of Keepers (storage
// shards); every Linda is pinned to one Keeper at construction and every
// operation on it locks that Keeper's mutex for the duration of one
// primitive call.
//
// Values cross into and out of a Keeper through the internal/copyengine
// package, which marshals them into envelopes rather than sharing Go
// values by reference, mirroring the deep-copy boundary a real multi-
// worker embedding requires between independent execution contexts.
package lanes
