package wire

import "crypto/sha256"

// ColumnType enumerates the primitive column types a row descriptor can
// describe. Only fixed, whitelisted shapes are supported, matching the
// typed-enum approach used elsewhere in this package.
type ColumnType uint8

const (
	ColumnTypeBytes ColumnType = iota
	ColumnTypeString
	ColumnTypeInt64
	ColumnTypeUint64
	ColumnTypeInt32
	ColumnTypeUint32
	ColumnTypeBool
	ColumnTypeFloat64
)

// ColumnDescriptor describes one column of a table's row type: its name,
// primitive wire type, nullability, and whether it is part of the primary
// key (primary-key columns are encoded first and compared for ordering).
type ColumnDescriptor struct {
	Name       string
	Type       ColumnType
	Nullable   bool
	PrimaryKey bool
}

// RowDescriptor is the compiled shape of a table's row: the column list in
// wire order. Two descriptors with identical content hash to the same
// Digest (DigestOf), a content-addressed key independent of handle
// identity; no cache in this module is keyed by it.
type RowDescriptor struct {
	TableName string
	Columns   []ColumnDescriptor
}

// Digest is a content-addressed fingerprint of a RowDescriptor. Identical
// descriptors from independent compilations (same table opened twice, or
// the same table reopened after a reconnect) always hash to the same
// value, so the cache key does not depend on handle identity.
type Digest [32]byte

// EncodeDescriptor serializes d in a canonical byte form suitable both for
// wire transfer and for hashing into a Digest.
func EncodeDescriptor(d RowDescriptor) []byte {
	e := NewEncoder()
	e.WriteString(d.TableName)
	e.WriteUint32(uint32(len(d.Columns)))
	for _, c := range d.Columns {
		e.WriteString(c.Name)
		e.WriteUint8(uint8(c.Type))
		e.WriteBool(c.Nullable)
		e.WriteBool(c.PrimaryKey)
	}
	return e.Bytes()
}

// DecodeDescriptor is the inverse of EncodeDescriptor.
func DecodeDescriptor(data []byte) (RowDescriptor, error) {
	d := NewDecoder(data)
	tableName, err := d.ReadString()
	if err != nil {
		return RowDescriptor{}, err
	}
	n, err := d.ReadUint32()
	if err != nil {
		return RowDescriptor{}, err
	}
	rd := RowDescriptor{TableName: tableName, Columns: make([]ColumnDescriptor, 0, n)}
	for i := uint32(0); i < n; i++ {
		name, err := d.ReadString()
		if err != nil {
			return RowDescriptor{}, err
		}
		typeByte, err := d.ReadUint8()
		if err != nil {
			return RowDescriptor{}, err
		}
		nullable, err := d.ReadBool()
		if err != nil {
			return RowDescriptor{}, err
		}
		pk, err := d.ReadBool()
		if err != nil {
			return RowDescriptor{}, err
		}
		rd.Columns = append(rd.Columns, ColumnDescriptor{
			Name: name, Type: ColumnType(typeByte), Nullable: nullable, PrimaryKey: pk,
		})
	}
	return rd, nil
}

// DigestOf computes the content-addressed cache key for d.
func DigestOf(d RowDescriptor) Digest {
	return sha256.Sum256(EncodeDescriptor(d))
}
