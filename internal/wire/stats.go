package wire

import "encoding/binary"

// statsVersion is bumped whenever a field is added to IndexStats. Decoders
// must tolerate a lower version than they understand, reading only the
// fields that version defines and defaulting the rest.
const statsVersion1 uint8 = 1

// IndexStats is a snapshot of an index's size/entry estimate, as returned by
// the analyze operation (§3 Data model, §4.6 Typed codecs). Unlike the rest
// of internal/wire, this record is little-endian: it originates from a
// native stats structure that is itself little-endian on disk, and the wire
// form is a direct copy of that layout rather than a fresh big-endian
// encoding.
type IndexStats struct {
	EntryCount   int64
	KeyBytes     int64
	ValueBytes   int64
	FreeBytes    int64
	TotalBytes   int64
	EvaluatedAt  int64 // unix nanos
}

// EncodeIndexStats serializes s as: 1-byte version, then six little-endian
// int64 fields in declaration order.
func EncodeIndexStats(s IndexStats) []byte {
	buf := make([]byte, 1+6*8)
	buf[0] = statsVersion1
	binary.LittleEndian.PutUint64(buf[1:9], uint64(s.EntryCount))
	binary.LittleEndian.PutUint64(buf[9:17], uint64(s.KeyBytes))
	binary.LittleEndian.PutUint64(buf[17:25], uint64(s.ValueBytes))
	binary.LittleEndian.PutUint64(buf[25:33], uint64(s.FreeBytes))
	binary.LittleEndian.PutUint64(buf[33:41], uint64(s.TotalBytes))
	binary.LittleEndian.PutUint64(buf[41:49], uint64(s.EvaluatedAt))
	return buf
}

// DecodeIndexStats is the inverse of EncodeIndexStats. A version byte other
// than 1 is read as far as its known fields go; unknown trailing fields
// from a newer version are ignored, and fields newer than what's present
// are left zero.
func DecodeIndexStats(data []byte) (IndexStats, error) {
	var s IndexStats
	if len(data) < 1 {
		return s, errShortStats
	}
	version := data[0]
	body := data[1:]

	read := func(off int) int64 {
		if len(body) < off+8 {
			return 0
		}
		return int64(binary.LittleEndian.Uint64(body[off : off+8]))
	}

	switch {
	case version >= statsVersion1:
		s.EntryCount = read(0)
		s.KeyBytes = read(8)
		s.ValueBytes = read(16)
		s.FreeBytes = read(24)
		s.TotalBytes = read(32)
		s.EvaluatedAt = read(40)
	}
	return s, nil
}

var errShortStats = wireErr("wire: stats record too short")

type wireErr string

func (e wireErr) Error() string { return string(e) }
