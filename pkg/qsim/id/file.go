package id

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v3"
)

// Encoding selects how a single namespace record's payload is framed
// on disk: Raw stores the concatenated length-prefixed external ids
// as-is, Lz4 runs them through an LZ4 block first. Large scenarios can
// have millions of interned link/person ids, so compressing the
// string table meaningfully shrinks the store file.
type Encoding uint8

const (
	Raw Encoding = iota
	Lz4
)

// builtinTypeIDs assigns a stable numeric id to each namespace name so the
// file format does not depend on Go's %T formatting remaining
// constant across versions; it is local to the file codec and has no
// bearing on the in-memory Internal values.
var builtinTypeIDs = map[string]uint64{
	"node":          1,
	"link":          2,
	"person":        3,
	"vehicle":       4,
	"vehicle-type":  5,
	"mode":          6,
	"activity-type": 7,
}

func typeIDFor(typ string) uint64 {
	if v, ok := builtinTypeIDs[typ]; ok {
		return v
	}
	// Unknown/custom namespaces still round-trip: hash the name into
	// the id space above the builtins so collisions with the fixed
	// table are avoided in practice.
	var h uint64 = 1469598103934665603 // FNV offset basis
	for i := 0; i < len(typ); i++ {
		h ^= uint64(typ[i])
		h *= 1099511628211
	}
	return 1000 + (h % 1_000_000)
}

func typeNameFor(id uint64) (string, bool) {
	for name, v := range builtinTypeIDs {
		if v == id {
			return name, true
		}
	}
	return "", false
}

// Save writes every namespace in s to w as a sequence of
// length-delimited records: {type_id uint64, encoding uint8,
// payload_len uint32, payload []byte}. Each payload is the
// concatenation of length-prefixed (uint32) UTF-8 external ids,
// ordered by internal value, optionally LZ4-compressed.
func Save(w io.Writer, s *Store, enc Encoding) error {
	bw := bufio.NewWriter(w)
	for _, typ := range s.Types() {
		if err := saveNamespace(bw, s, typ, enc); err != nil {
			return fmt.Errorf("id: saving namespace %q: %w", typ, err)
		}
	}
	return bw.Flush()
}

func saveNamespace(w *bufio.Writer, s *Store, typ string, enc Encoding) error {
	externals := s.namespaceFor(typ).snapshot()

	var raw bytes.Buffer
	for _, ext := range externals {
		b := []byte(ext)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		raw.Write(lenBuf[:])
		raw.Write(b)
	}

	payload := raw.Bytes()
	if enc == Lz4 {
		compressed, err := lz4Compress(payload)
		if err != nil {
			return err
		}
		payload = compressed
	}

	var header [13]byte
	binary.BigEndian.PutUint64(header[0:8], typeIDFor(typ))
	header[8] = byte(enc)
	binary.BigEndian.PutUint32(header[9:13], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// Load reads records written by Save and interns every external id
// back into s, in the same order, so a store loaded identically on
// every worker reproduces the same internals.
func Load(r io.Reader, s *Store) error {
	br := bufio.NewReader(r)
	for {
		var header [13]byte
		_, err := io.ReadFull(br, header[:])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("id: reading record header: %w", err)
		}
		typeID := binary.BigEndian.Uint64(header[0:8])
		enc := Encoding(header[8])
		payloadLen := binary.BigEndian.Uint32(header[9:13])

		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(br, payload); err != nil {
			return fmt.Errorf("id: reading record payload: %w", err)
		}

		typ, ok := typeNameFor(typeID)
		if !ok {
			return fmt.Errorf("id: unknown type id %d in store file", typeID)
		}

		if enc == Lz4 {
			decompressed, err := lz4Decompress(payload)
			if err != nil {
				return fmt.Errorf("id: lz4 decompress namespace %q: %w", typ, err)
			}
			payload = decompressed
		}

		if err := loadNamespace(payload, s, typ); err != nil {
			return err
		}
	}
}

func loadNamespace(payload []byte, s *Store, typ string) error {
	for len(payload) > 0 {
		if len(payload) < 4 {
			return fmt.Errorf("id: truncated external-id length prefix in namespace %q", typ)
		}
		n := binary.BigEndian.Uint32(payload[:4])
		payload = payload[4:]
		if uint32(len(payload)) < n {
			return fmt.Errorf("id: truncated external-id payload in namespace %q", typ)
		}
		external := string(payload[:n])
		payload = payload[n:]
		s.Intern(typ, external)
	}
	return nil
}

func lz4Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(in); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Decompress(in []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(in))
	return io.ReadAll(zr)
}
