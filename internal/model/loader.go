//go:build native

package model

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"wizgo/internal/ggml"
	"wizgo/internal/vocab"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// Progress receives synchronous load progress events. May be nil.
	Progress ProgressSink
	// Mirror receives a human-readable progress line per event, in addition
	// to Progress, for CLI spinners / log mirroring.
	Mirror io.Writer
}

func (o LoadOptions) emit(ev ProgressEvent, line string) {
	if o.Progress != nil {
		o.Progress(ev)
	}
	if o.Mirror != nil && line != "" {
		fmt.Fprintln(o.Mirror, line)
	}
}

// Load parses a ggml-format model file (and any split part files) and
// returns the fully populated in-memory Model. No tensor is left partially
// filled on any error path: a structural problem fails the entire load.
func Load(path string, opts LoadOptions) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFileFailed, path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	// Magic is read but not validated by identity (open question i in
	// spec.md §9); any mismatch surfaces downstream as a structural error.
	if _, err := readI32(r); err != nil {
		return nil, err
	}

	hparams, err := readHyperparameters(r)
	if err != nil {
		return nil, err
	}
	opts.emit(ProgressEvent{Kind: HyperparametersLoaded, Hyperparameters: hparams},
		fmt.Sprintf("hyperparameters: d_model=%d n_heads=%d n_layers=%d n_vocab=%d ftype=%d",
			hparams.DModel, hparams.NHeads, hparams.NLayers, hparams.NVocab, hparams.FType))

	if _, err := hparams.Wtype(); err != nil {
		return nil, err
	}

	v, err := readVocabulary(r, int(hparams.NVocab), opts)
	if err != nil {
		return nil, err
	}

	tok, err := vocab.New(v)
	if err != nil {
		return nil, fmt.Errorf("building tokenizer: %w", err)
	}

	ctxSize, err := computeCtxSize(hparams)
	if err != nil {
		return nil, err
	}
	opts.emit(ProgressEvent{Kind: ContextSize, Bytes: ctxSize},
		fmt.Sprintf("weight context size: %d bytes", ctxSize))

	m, err := newWeightLayout(hparams, ctxSize)
	if err != nil {
		return nil, err
	}
	m.Vocab = v
	m.Tokenizer = tok

	// Remember how far we read: part files repeat the
	// same metadata prefix and must skip past it before tensor entries.
	fileOffset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	// bufio.Reader buffers ahead of the OS file offset; correct for that so
	// fileOffset reflects exactly what has been logically consumed.
	fileOffset -= int64(r.Buffered())

	parts, err := discoverParts(path)
	if err != nil {
		m.Close()
		return nil, err
	}
	nParts := len(parts)

	for partID, partPath := range parts {
		if err := loadPart(m, partPath, partID, nParts, fileOffset, opts); err != nil {
			m.Close()
			return nil, err
		}
	}

	return m, nil
}

func readHyperparameters(r io.Reader) (Hyperparameters, error) {
	var h Hyperparameters
	fields := []*int32{&h.DModel, &h.MaxSeqLen, &h.NHeads, &h.NLayers, &h.NVocab, &h.FType}
	for _, f := range fields {
		v, err := readI32(r)
		if err != nil {
			return h, err
		}
		*f = v
	}
	return h, nil
}

func readVocabulary(r io.Reader, nVocab int, opts LoadOptions) (vocab.Vocabulary, error) {
	v := make(vocab.Vocabulary, 0, nVocab)
	for i := 0; i < nVocab; i++ {
		length, err := readI32(r)
		if err != nil {
			return nil, err
		}
		word, werr := readString(r, int(length))
		if werr != nil {
			opts.emit(ProgressEvent{Kind: BadToken, Index: i}, fmt.Sprintf("bad token at index %d", i))
			// Per spec.md §4.2: still must consume the f32 score that
			// follows the (unreadable) word bytes before continuing.
			if _, err := readF32(r); err != nil {
				return nil, err
			}
			v = append(v, vocab.Entry{Word: "<unk>", Score: 0.0})
			continue
		}
		score, err := readF32(r)
		if err != nil {
			return nil, err
		}
		v = append(v, vocab.Entry{Word: vocab.NormalizeWord(word), Score: float64(score)})
	}
	return v, nil
}

// computeCtxSize sums the weight-context sizing formula from spec.md §4.2,
// in 64-bit floating point to avoid overflow across large products.
func computeCtxSize(h Hyperparameters) (int64, error) {
	wtype, err := h.Wtype()
	if err != nil {
		return 0, err
	}
	nEmbd := float64(h.DModel)
	nLayer := float64(h.NLayers)
	nVocab := float64(h.NVocab)
	nCtx := float64(h.MaxSeqLen)
	wtypeSize := ggml.TypeSizeF(wtype)
	f32Size := ggml.TypeSizeF(ggml.TypeF32)

	var size float64
	size += nEmbd * nVocab * wtypeSize // wte

	size += nLayer * nEmbd * f32Size       // ln_1
	size += nLayer * nEmbd * nEmbd * 3 * wtypeSize // Wqkv
	size += nLayer * nEmbd * nEmbd * wtypeSize     // out_proj
	size += nLayer * nEmbd * wtypeSize             // ln_2
	size += nLayer * 4 * nEmbd * nEmbd * wtypeSize // mlp_up
	size += nLayer * nEmbd * nEmbd * 4 * wtypeSize // mlp_down

	size += nCtx * nLayer * nEmbd * f32Size * 2 // memory_k + memory_v sizing only

	size += (6 + 16*nLayer) * 256 // library object overhead

	return int64(size), nil
}

// discoverParts enumerates sibling files sharing path's basename as a
// prefix, sorted lexicographically; part_id is the sort position.
func discoverParts(path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)
	base := filepath.Base(abs)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoParentPath, path, err)
	}

	var parts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), base) {
			parts = append(parts, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(parts)
	return parts, nil
}

func loadPart(m *Model, partPath string, partID, nParts int, fileOffset int64, opts LoadOptions) error {
	f, err := os.Open(partPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOpenFileFailed, partPath, err)
	}
	defer f.Close()

	if _, err := f.Seek(fileOffset, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(f)

	opts.emit(ProgressEvent{Kind: PartLoading, File: partPath, CurrentPart: partID + 1, TotalParts: nParts},
		fmt.Sprintf("loading part %d/%d: %s", partID+1, nParts, partPath))

	var totalSize int64
	var nTensors int

	for {
		if _, err := r.Peek(1); err == io.EOF {
			break
		} else if err != nil {
			return err
		}

		nDims, err := readI32(r)
		if err != nil {
			return err
		}
		nameLen, err := readI32(r)
		if err != nil {
			return err
		}
		ftypeCode, err := readI32(r)
		if err != nil {
			return err
		}

		ne := [2]int64{1, 1}
		var nelements int64 = 1
		for i := int32(0); i < nDims; i++ {
			d, err := readI32(r)
			if err != nil {
				return err
			}
			ne[i] = int64(d)
			nelements *= int64(d)
		}

		name, err := readString(r, int(nameLen))
		if err != nil {
			return err
		}

		tensor, ok := m.TensorByName(name)
		if !ok {
			return fmt.Errorf("%w: %q in %s", ErrUnknownTensor, name, partPath)
		}

		if err := validateShape(tensor, name, partPath, int(nDims), ne, nelements, nParts); err != nil {
			return err
		}

		bpe, blck, err := ftypeSizing(ftypeCode, ne[0], name, partPath)
		if err != nil {
			return err
		}

		if nDims == 1 || nParts == 1 {
			want := nelements * bpe / blck
			if want != tensor.NBytes() {
				return fmt.Errorf("%w: %q in %s", ErrTensorWrongSize, name, partPath)
			}
			n, err := readTensorData(r, tensor, partID, want)
			if err != nil {
				return err
			}
			totalSize += n
		} else {
			want := nelements * bpe / blck
			if want != tensor.NBytes()/int64(nParts) {
				return fmt.Errorf("%w: %q in %s", ErrTensorWrongSize, name, partPath)
			}
			n, err := readSplitColumns(r, tensor, partID, nParts, ne[1])
			if err != nil {
				return err
			}
			totalSize += n
		}

		nTensors++
		opts.emit(ProgressEvent{Kind: PartTensorLoaded, File: partPath, CurrentTensor: nTensors, TensorCount: len(m.TensorNames())},
			"")
	}

	opts.emit(ProgressEvent{Kind: PartLoaded, File: partPath, Bytes: totalSize, TensorCount: nTensors},
		fmt.Sprintf("loaded part %s: %d bytes, %d tensors", partPath, totalSize, nTensors))
	return nil
}

func validateShape(tensor *ggml.Tensor, name, partPath string, nDims int, ne [2]int64, nelements int64, nParts int) error {
	shape := tensor.Shape()
	if nDims == 1 {
		if tensor.NElements() != nelements {
			return fmt.Errorf("%w: %q in %s", ErrTensorWrongSize, name, partPath)
		}
		if shape[0] != ne[0] || shape[1] != ne[1] {
			return fmt.Errorf("%w: %q in %s", ErrTensorWrongSize, name, partPath)
		}
		return nil
	}
	if tensor.NElements()/int64(nParts) != nelements {
		return fmt.Errorf("%w: %q in %s", ErrTensorWrongSize, name, partPath)
	}
	// split_type is always column-split (dimension 0); row-split exists in
	// the original project but is never selected (open question iii).
	if shape[0]/int64(nParts) != ne[0] || shape[1] != ne[1] {
		return fmt.Errorf("%w: %q in %s", ErrTensorWrongSize, name, partPath)
	}
	return nil
}

func ftypeSizing(ftypeCode int32, ne0 int64, name, partPath string) (bpe, blck int64, err error) {
	var t ggml.Type
	switch ftypeCode {
	case 0:
		t = ggml.TypeF32
	case 1:
		t = ggml.TypeF16
	case 2:
		t = ggml.TypeQ4_0
		if ne0%64 != 0 {
			return 0, 0, fmt.Errorf("%w: %q in %s", ErrInvalidFtype, name, partPath)
		}
	case 3:
		t = ggml.TypeQ4_1
		if ne0%64 != 0 {
			return 0, 0, fmt.Errorf("%w: %q in %s", ErrInvalidFtype, name, partPath)
		}
	default:
		return 0, 0, fmt.Errorf("%w: %d for %q in %s", ErrInvalidFtype, ftypeCode, name, partPath)
	}
	return ggml.TypeSize(t), ggml.BlckSize(t), nil
}

// readTensorData reads a whole (non-split) tensor's bytes; only part 0
// writes them, later parts seek past the identical data.
func readTensorData(r *bufio.Reader, tensor *ggml.Tensor, partID int, nBytes int64) (int64, error) {
	if partID != 0 {
		if _, err := r.Discard(int(nBytes)); err != nil {
			return 0, fmt.Errorf("%w: %d bytes: %v", ErrReadExactFailed, nBytes, err)
		}
		return nBytes, nil
	}
	buf := make([]byte, nBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, fmt.Errorf("%w: %d bytes: %v", ErrReadExactFailed, nBytes, err)
	}
	if err := tensor.WriteData(buf); err != nil {
		return 0, err
	}
	return nBytes, nil
}

// readSplitColumns places one part's row-fragments of a column-split
// tensor: each row writes row_size/n_parts contiguous bytes at
// part_id*(row_size/n_parts) within that row.
func readSplitColumns(r *bufio.Reader, tensor *ggml.Tensor, partID, nParts int, nRows int64) (int64, error) {
	shape := tensor.Shape()
	t := tensor.Type()
	rowSize := (shape[0] / ggml.BlckSize(t)) * ggml.TypeSize(t)
	fragSize := rowSize / int64(nParts)
	var total int64

	for row := int64(0); row < nRows; row++ {
		offset := row*rowSize + int64(partID)*fragSize
		buf := make([]byte, fragSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, fmt.Errorf("%w: %d bytes: %v", ErrReadExactFailed, fragSize, err)
		}
		if err := tensor.WriteDataAt(offset, buf); err != nil {
			return 0, err
		}
		total += fragSize
	}
	return total, nil
}

func readI32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: 4 bytes: %v", ErrReadExactFailed, err)
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func readF32(r io.Reader) (float32, error) {
	v, err := readI32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

func readString(r io.Reader, n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %d bytes: %v", ErrReadExactFailed, n, err)
	}
	if !utf8.Valid(buf) {
		return "", ErrInvalidUtf8
	}
	return string(buf), nil
}
