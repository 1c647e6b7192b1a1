// Package redis persists token records and refresh locks in Redis.
//
// Records live under <prefix>tokens:<userId>:<PLATFORM> and are encoded
// with a core.TokenCodec, so a sealed codec keeps tokens encrypted at
// rest. Locks use SET NX PX and are released only by their owner.
package redis
