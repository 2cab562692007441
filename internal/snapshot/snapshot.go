// Package snapshot implements the Snapshot Codec (C7): a length-prefixed,
// endian-normalized binary serialization of a session's KV memory and
// sampling state, portable across hosts sharing KV types and n_ctx. It has
// no dependency on the native tensor runtime — the session package copies
// tensor bytes out eagerly before handing them to this package, per the
// "owned copy, not aliasing view" decision recorded in DESIGN.md.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// KVType mirrors session.MemoryType without depending on the native-gated
// session package; F16=0, F32=1 matches spec.md's enumeration order.
type KVType int32

const (
	KVTypeF16 KVType = iota
	KVTypeF32
)

// Params are the session parameters carried in the snapshot tuple.
type Params struct {
	LastNSize   int32
	MemoryKType KVType
	MemoryVType KVType
}

// Snapshot is the serializable tuple from spec.md §3: {npast, session_params,
// memory_k_bytes, memory_v_bytes, last_n_tokens, last_logits}.
type Snapshot struct {
	NPast         int32
	Params        Params
	MemoryKBytes  []byte
	MemoryVBytes  []byte
	LastNTokens   []int32
	LastLogits    []float32
}

const magic = uint32(0x57495A47) // "WIZG"
const formatVersion = uint32(1)

// ErrMemorySizeMismatch distinguishes "file is from a different session
// shape" from "file is corrupt" (spec.md §7).
var ErrMemorySizeMismatch = fmt.Errorf("snapshot: memory size mismatch")

// Write serializes s to w in the stable little-endian framing.
func Write(w io.Writer, s *Snapshot) error {
	bw := bufio.NewWriter(w)
	if err := writeU32(bw, magic); err != nil {
		return err
	}
	if err := writeU32(bw, formatVersion); err != nil {
		return err
	}
	if err := writeI32(bw, s.NPast); err != nil {
		return err
	}
	if err := writeI32(bw, s.Params.LastNSize); err != nil {
		return err
	}
	if err := writeI32(bw, int32(s.Params.MemoryKType)); err != nil {
		return err
	}
	if err := writeI32(bw, int32(s.Params.MemoryVType)); err != nil {
		return err
	}
	if err := writeBytes(bw, s.MemoryKBytes); err != nil {
		return err
	}
	if err := writeBytes(bw, s.MemoryVBytes); err != nil {
		return err
	}
	if err := writeI32(bw, int32(len(s.LastNTokens))); err != nil {
		return err
	}
	for _, tok := range s.LastNTokens {
		if err := writeI32(bw, tok); err != nil {
			return err
		}
	}
	if err := writeI32(bw, int32(len(s.LastLogits))); err != nil {
		return err
	}
	for _, l := range s.LastLogits {
		if err := writeU32(bw, math.Float32bits(l)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read deserializes a Snapshot from r.
func Read(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)
	gotMagic, err := readU32(br)
	if err != nil {
		return nil, err
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("snapshot: bad magic %x", gotMagic)
	}
	if _, err := readU32(br); err != nil { // format version, not yet branched on
		return nil, err
	}

	s := &Snapshot{}
	if s.NPast, err = readI32(br); err != nil {
		return nil, err
	}
	if s.Params.LastNSize, err = readI32(br); err != nil {
		return nil, err
	}
	kt, err := readI32(br)
	if err != nil {
		return nil, err
	}
	s.Params.MemoryKType = KVType(kt)
	vt, err := readI32(br)
	if err != nil {
		return nil, err
	}
	s.Params.MemoryVType = KVType(vt)

	if s.MemoryKBytes, err = readBytes(br); err != nil {
		return nil, err
	}
	if s.MemoryVBytes, err = readBytes(br); err != nil {
		return nil, err
	}

	nTok, err := readI32(br)
	if err != nil {
		return nil, err
	}
	s.LastNTokens = make([]int32, nTok)
	for i := range s.LastNTokens {
		if s.LastNTokens[i], err = readI32(br); err != nil {
			return nil, err
		}
	}

	nLogits, err := readI32(br)
	if err != nil {
		return nil, err
	}
	s.LastLogits = make([]float32, nLogits)
	for i := range s.LastLogits {
		bits, err := readU32(br)
		if err != nil {
			return nil, err
		}
		s.LastLogits[i] = math.Float32frombits(bits)
	}

	return s, nil
}

// WriteToDisk writes s to path, truncating any existing file.
func WriteToDisk(path string, s *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, s)
}

// LoadFromDisk reads a Snapshot previously written with WriteToDisk.
func LoadFromDisk(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeI32(w io.Writer, v int32) error { return writeU32(w, uint32(v)) }

func writeBytes(w io.Writer, b []byte) error {
	if err := writeU32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readI32(r io.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
