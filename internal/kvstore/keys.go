package kvstore

import "encoding/binary"

// Key layout. Segments are NUL-separated; ids are validated to contain no
// control characters, so they cannot collide with the separator.
//
//	s\0<space>\0seq                 version counter
//	s\0<space>\0h\0<id>             head version of a feature
//	s\0<space>\0r\0<id>\0<version>  version record (big-endian version)
//	a\0<space>\0n                   activity sequence counter
//	a\0<space>\0e\0<seq>            activity entry (big-endian seq)
const sep = "\x00"

func spacePrefix(space string) string { return "s" + sep + space + sep }

func seqKey(space string) []byte { return []byte(spacePrefix(space) + "seq") }

func headKey(space, id string) []byte { return []byte(spacePrefix(space) + "h" + sep + id) }

func recordPrefix(space, id string) []byte {
	return []byte(spacePrefix(space) + "r" + sep + id + sep)
}

func recordKey(space, id string, version int64) []byte {
	return appendUint64(recordPrefix(space, id), uint64(version))
}

func activityPrefix(space string) string { return "a" + sep + space + sep }

func activitySeqKey(space string) []byte { return []byte(activityPrefix(space) + "n") }

func activityEntryPrefix(space string) []byte { return []byte(activityPrefix(space) + "e" + sep) }

func activityEntryKey(space string, seq int64) []byte {
	return appendUint64(activityEntryPrefix(space), uint64(seq))
}

func appendUint64(prefix []byte, v uint64) []byte {
	key := make([]byte, len(prefix), len(prefix)+8)
	copy(key, prefix)

	return binary.BigEndian.AppendUint64(key, v)
}

func encodeCounter(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v))
}

func decodeCounter(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}

	return int64(binary.BigEndian.Uint64(b))
}
