package kv

import (
	"encoding/binary"

	"github.com/lintang-b-s/songmap/pkg/datastructure"

	kbinary "github.com/kelindar/binary"
)

const (
	pcaPrefix = "pca/"
)

// pcaKey prefix followed by the big endian track id, so a prefix scan returns the tracks ordered by id.
func pcaKey(id int) []byte {
	key := make([]byte, len(pcaPrefix)+8)
	copy(key, pcaPrefix)
	binary.BigEndian.PutUint64(key[len(pcaPrefix):], uint64(int64(id)))
	return key
}

func encodeCoordinate(c datastructure.PcaCoordinate) ([]byte, error) {
	return kbinary.Marshal(c)
}

func decodeCoordinate(bb []byte) (datastructure.PcaCoordinate, error) {
	var c datastructure.PcaCoordinate
	err := kbinary.Unmarshal(bb, &c)
	return c, err
}
