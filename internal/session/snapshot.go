//go:build native

package session

import (
	"fmt"

	"wizgo/internal/model"
	"wizgo/internal/snapshot"
)

func toKVType(t MemoryType) snapshot.KVType {
	if t == MemoryF16 {
		return snapshot.KVTypeF16
	}
	return snapshot.KVTypeF32
}

func fromKVType(t snapshot.KVType) MemoryType {
	if t == snapshot.KVTypeF16 {
		return MemoryF16
	}
	return MemoryF32
}

// FromSnapshot starts a new session sized to match snap's shape and
// restores its KV bytes and sampling state. Returns ErrMemorySizeMismatch if
// the freshly allocated session's KV tensors don't match snap's byte
// lengths exactly (spec.md §4.3).
func FromSnapshot(m *model.Model, snap *snapshot.Snapshot) (*Session, error) {
	s, err := Start(m, Params{
		LastNSize:   len(snap.LastNTokens),
		MemoryKType: fromKVType(snap.Params.MemoryKType),
		MemoryVType: fromKVType(snap.Params.MemoryVType),
	})
	if err != nil {
		return nil, err
	}

	if s.MemoryK.NBytes() != int64(len(snap.MemoryKBytes)) || s.MemoryV.NBytes() != int64(len(snap.MemoryVBytes)) {
		s.Close()
		return nil, fmt.Errorf("%w: k=%d/%d v=%d/%d", ErrMemorySizeMismatch,
			s.MemoryK.NBytes(), len(snap.MemoryKBytes), s.MemoryV.NBytes(), len(snap.MemoryVBytes))
	}

	if err := s.MemoryK.WriteData(snap.MemoryKBytes); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.MemoryV.WriteData(snap.MemoryVBytes); err != nil {
		s.Close()
		return nil, err
	}

	s.NPast = snap.NPast
	s.LastNTokens = append([]int32(nil), snap.LastNTokens...)
	s.LastLogits = append([]float32(nil), snap.LastLogits...)
	return s, nil
}

// GetSnapshot returns an owned copy of the session's state: the KV tensor
// bytes are copied eagerly rather than aliased, unlike original_source's
// `get_snapshot`, which returns a borrowed view into live KV memory and
// documents that the caller must not touch the evaluator while the view is
// alive. Go's GC gives tensor handles no lifetime the compiler can enforce,
// so an aliasing view here would be unsafe; the eager copy costs one
// memcpy per KV tensor, cheap next to a forward pass (see DESIGN.md).
func (s *Session) GetSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		NPast: s.NPast,
		Params: snapshot.Params{
			LastNSize:   int32(s.Params.LastNSize),
			MemoryKType: toKVType(s.Params.MemoryKType),
			MemoryVType: toKVType(s.Params.MemoryVType),
		},
		MemoryKBytes: s.MemoryK.ReadData(),
		MemoryVBytes: s.MemoryV.ReadData(),
		LastNTokens:  append([]int32(nil), s.LastNTokens...),
		LastLogits:   append([]float32(nil), s.LastLogits...),
	}
}
