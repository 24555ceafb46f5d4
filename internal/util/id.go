package util

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// NewID returns prefix_<hex>, where the first 12 hex digits are the creation
// time in milliseconds so ids sort roughly by age.
func NewID(prefix string) string {
	return newIDAt(prefix, time.Now())
}

func newIDAt(prefix string, at time.Time) string {
	buf := make([]byte, 16)
	var millis [8]byte
	binary.BigEndian.PutUint64(millis[:], uint64(at.UnixMilli()))
	copy(buf[:6], millis[2:])
	_, _ = rand.Read(buf[6:])

	id := hex.EncodeToString(buf)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
