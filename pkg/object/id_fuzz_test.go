package object_test

import (
	"testing"

	"github.com/agenthands/objstore/pkg/encoding"
	"github.com/agenthands/objstore/pkg/object"
)

func FuzzDecode(f *testing.F) {
	seed, _ := object.NewRevision(255, 7, 12).MarshalBinary()
	f.Add(seed)
	f.Add(make([]byte, object.Size))
	f.Add([]byte{})
	f.Add(make([]byte, object.Size-1))

	f.Fuzz(func(t *testing.T, data []byte) {
		var id object.ID
		err := id.Decode(encoding.NewCursor(data))
		if len(data) < object.Size {
			if err == nil {
				t.Fatalf("decode of %d bytes succeeded", len(data))
			}
			return
		}
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		w := encoding.NewBuffer(nil)
		id.Encode(w)
		if string(w.Bytes()) != string(data[:object.Size]) {
			t.Fatalf("re-encode mismatch: %x vs %x", w.Bytes(), data[:object.Size])
		}
	})
}
