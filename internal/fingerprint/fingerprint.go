// Package fingerprint derives cache keys from thumbnail tasks
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/DMarby/thumbs/internal/image"
	"lukechampine.com/blake3"
)

// Size is the length of a Key in bytes
const Size = 32

// Key identifies a unique image and transform pair
type Key [Size]byte

// String returns the hex encoding of the key
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Tags written ahead of each present optional parameter
const (
	minTag          byte = 'm'
	maxTag          byte = 'M'
	autoContrastTag byte = 'a'
)

// Generate returns the key for a task
// The identifier is length prefixed so it can't run into the dimensions, and optional parameters are
// only hashed when present, each behind its own tag, so no two distinct tasks share an encoding
func Generate(task *image.Task) Key {
	hasher := blake3.New(Size, nil)

	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(task.ImageID)))
	hasher.Write(length[:])
	hasher.Write([]byte(task.ImageID))

	var dimension [4]byte
	binary.LittleEndian.PutUint32(dimension[:], uint32(task.Width))
	hasher.Write(dimension[:])
	binary.LittleEndian.PutUint32(dimension[:], uint32(task.Height))
	hasher.Write(dimension[:])

	if low, ok := task.Min.Get(); ok {
		hasher.Write([]byte{minTag, low})
	}

	if high, ok := task.Max.Get(); ok {
		hasher.Write([]byte{maxTag, high})
	}

	if autoContrast, ok := task.AutoContrast.Get(); ok {
		hasher.Write([]byte{autoContrastTag, boolByte(autoContrast)})
	}

	var key Key
	copy(key[:], hasher.Sum(nil))
	return key
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
