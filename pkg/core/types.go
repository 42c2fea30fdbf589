package core

// CID represents binary CID bytes.
type CID struct {
	Bytes []byte
}

// ObjectRecord is the plain interchange form of an object identifier. Its
// field order and widths mirror object.ID and must not change: peers that
// exchange records rely on the layout. Over CBOR it travels as a three
// element array.
type ObjectRecord struct {
	_        struct{} `cbor:",toarray"`
	FileID   uint64
	BlockNo  uint32
	Revision uint64
}
