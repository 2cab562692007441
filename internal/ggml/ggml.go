//go:build native

// Package ggml is a thin cgo façade over the native ggml tensor runtime:
// arenas ("contexts"), typed tensor handles, the elementwise/matmul/attention
// operators the MPT evaluator needs, and multi-threaded graph compute. It
// adds no numerics of its own — operator semantics are whatever the vendored
// library implements.
package ggml

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/ggml/lib -lggml -lm -lstdc++ -lpthread

#include <stdlib.h>
#include <string.h>
#include "ggml.h"

static struct ggml_context *wz_init(size_t mem_size) {
    struct ggml_init_params params;
    params.mem_size   = mem_size;
    params.mem_buffer = NULL;
    params.no_alloc   = 0;
    return ggml_init(params);
}

static struct ggml_cgraph *wz_new_graph(struct ggml_context *ctx) {
    return ggml_new_graph(ctx);
}

static int wz_graph_compute(struct ggml_context *ctx, struct ggml_cgraph *graph, int n_threads) {
    struct ggml_cplan plan = ggml_graph_plan(graph, n_threads, NULL);
    void *work = NULL;
    if (plan.work_size > 0) {
        work = malloc(plan.work_size);
        plan.work_data = (uint8_t *)work;
    }
    int rc = ggml_graph_compute(graph, &plan);
    if (work != NULL) {
        free(work);
    }
    return rc;
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Type mirrors ggml's element type codes. Only the subset the MPT evaluator
// and model loader need is exposed.
type Type int32

const (
	TypeF32  Type = 0
	TypeF16  Type = 1
	TypeQ4_0 Type = 2
	TypeQ4_1 Type = 3
	TypeI32  Type = 18
)

func (t Type) cType() C.enum_ggml_type { return C.enum_ggml_type(t) }

// TypeSize returns the size in bytes of one block of the given type.
func TypeSize(t Type) int64 { return int64(C.ggml_type_size(t.cType())) }

// TypeSizeF returns the size in bytes per element, which may be fractional
// for block-quantized types; callers doing sizing arithmetic should use this
// rather than TypeSize/BlckSize done by hand to avoid truncation bugs.
func TypeSizeF(t Type) float64 {
	return float64(C.ggml_type_size(t.cType())) / float64(C.ggml_blck_size(t.cType()))
}

// BlckSize returns the number of elements per quantization block.
func BlckSize(t Type) int64 { return int64(C.ggml_blck_size(t.cType())) }

// Context is a pre-sized arena. All tensors allocated from it share its
// lifetime; Close releases every tensor allocated in it at once.
type Context struct {
	ptr    *C.struct_ggml_context
	closed bool
}

// InitContext allocates a new arena of the given byte size.
func InitContext(memSize int64) (*Context, error) {
	ptr := C.wz_init(C.size_t(memSize))
	if ptr == nil {
		return nil, fmt.Errorf("ggml: failed to allocate context of %d bytes", memSize)
	}
	return &Context{ptr: ptr}, nil
}

// UsedMem reports bytes consumed from the arena so far, for scratch-context
// autosizing (mem_per_token estimation).
func (c *Context) UsedMem() int64 {
	if c.closed {
		return 0
	}
	return int64(C.ggml_used_mem(c.ptr))
}

// Close frees the arena and every tensor allocated from it. Safe to call
// more than once.
func (c *Context) Close() {
	if c.closed {
		return
	}
	C.ggml_free(c.ptr)
	c.closed = true
}

// Tensor is an opaque handle into its owning Context: element type, shape
// (up to 4 dims), element count, byte count, and a data pointer.
type Tensor struct {
	ptr *C.struct_ggml_tensor
	ctx *Context
}

func wrap(ctx *Context, ptr *C.struct_ggml_tensor) *Tensor {
	if ptr == nil {
		return nil
	}
	return &Tensor{ptr: ptr, ctx: ctx}
}

// NewTensor1D allocates a 1-dimensional tensor.
func (c *Context) NewTensor1D(t Type, ne0 int64) *Tensor {
	return wrap(c, C.ggml_new_tensor_1d(c.ptr, t.cType(), C.int64_t(ne0)))
}

// NewTensor2D allocates a 2-dimensional tensor.
func (c *Context) NewTensor2D(t Type, ne0, ne1 int64) *Tensor {
	return wrap(c, C.ggml_new_tensor_2d(c.ptr, t.cType(), C.int64_t(ne0), C.int64_t(ne1)))
}

// NewTensor3D allocates a 3-dimensional tensor.
func (c *Context) NewTensor3D(t Type, ne0, ne1, ne2 int64) *Tensor {
	return wrap(c, C.ggml_new_tensor_3d(c.ptr, t.cType(), C.int64_t(ne0), C.int64_t(ne1), C.int64_t(ne2)))
}

// Type returns the tensor's element type.
func (t *Tensor) Type() Type { return Type(t.ptr._type) }

// NElements returns the total number of elements across all dims.
func (t *Tensor) NElements() int64 { return int64(C.ggml_nelements(t.ptr)) }

// NBytes returns the tensor's total byte size.
func (t *Tensor) NBytes() int64 { return int64(C.ggml_nbytes(t.ptr)) }

// ElementSize returns the byte size of a single element of the tensor's type.
func (t *Tensor) ElementSize() int64 { return int64(C.ggml_element_size(t.ptr)) }

// Shape returns up to 4 dimension extents (ne[0..3]).
func (t *Tensor) Shape() [4]int64 {
	return [4]int64{int64(t.ptr.ne[0]), int64(t.ptr.ne[1]), int64(t.ptr.ne[2]), int64(t.ptr.ne[3])}
}

// Strides returns the byte strides per dim (nb[0..3]).
func (t *Tensor) Strides() [4]int64 {
	return [4]int64{int64(t.ptr.nb[0]), int64(t.ptr.nb[1]), int64(t.ptr.nb[2]), int64(t.ptr.nb[3])}
}

// DataPtr returns the tensor's raw data pointer, valid for the lifetime of
// its owning Context.
func (t *Tensor) DataPtr() unsafe.Pointer { return t.ptr.data }

// WriteData copies raw bytes into the tensor's backing storage. len(data)
// must equal t.NBytes().
func (t *Tensor) WriteData(data []byte) error {
	if int64(len(data)) != t.NBytes() {
		return fmt.Errorf("ggml: WriteData: got %d bytes, tensor wants %d", len(data), t.NBytes())
	}
	if len(data) == 0 {
		return nil
	}
	C.memcpy(t.ptr.data, unsafe.Pointer(&data[0]), C.size_t(len(data)))
	return nil
}

// WriteDataAt copies raw bytes starting at byte offset off within the
// tensor's storage, used to place split-tensor row fragments.
func (t *Tensor) WriteDataAt(off int64, data []byte) error {
	if off < 0 || off+int64(len(data)) > t.NBytes() {
		return fmt.Errorf("ggml: WriteDataAt: offset %d + len %d exceeds tensor size %d", off, len(data), t.NBytes())
	}
	if len(data) == 0 {
		return nil
	}
	dst := unsafe.Add(t.ptr.data, off)
	C.memcpy(dst, unsafe.Pointer(&data[0]), C.size_t(len(data)))
	return nil
}

// ReadData copies the tensor's raw bytes out into a fresh slice.
func (t *Tensor) ReadData() []byte {
	n := t.NBytes()
	out := make([]byte, n)
	if n == 0 {
		return out
	}
	C.memcpy(unsafe.Pointer(&out[0]), t.ptr.data, C.size_t(n))
	return out
}

// ReadDataAt copies n bytes starting at byte offset off out of the tensor's
// storage, used to extract the last-step logits after a forward pass.
func (t *Tensor) ReadDataAt(off, n int64) []byte {
	out := make([]byte, n)
	if n == 0 {
		return out
	}
	src := unsafe.Add(t.ptr.data, off)
	C.memcpy(unsafe.Pointer(&out[0]), src, C.size_t(n))
	return out
}

// Share returns a cheap alias of t sharing the same storage, type, shape and
// strides (ggml_view_tensor), used where the spec calls for "share(tensor)".
func (t *Tensor) Share() *Tensor {
	return wrap(t.ctx, C.ggml_view_tensor(t.ctx.ptr, t.ptr))
}

// GetRows implements the ggml_get_rows operator: gathers rows of a from the
// indices in b (typically an I32 tensor of token ids).
func (c *Context) GetRows(a, b *Tensor) *Tensor {
	return wrap(c, C.ggml_get_rows(c.ptr, a.ptr, b.ptr))
}

// Norm applies layer normalization (no scale/bias fused in).
func (c *Context) Norm(a *Tensor) *Tensor { return wrap(c, C.ggml_norm(c.ptr, a.ptr, 1e-5)) }

// Mul is elementwise multiply with broadcasting.
func (c *Context) Mul(a, b *Tensor) *Tensor { return wrap(c, C.ggml_mul(c.ptr, a.ptr, b.ptr)) }

// Add is elementwise add with broadcasting.
func (c *Context) Add(a, b *Tensor) *Tensor { return wrap(c, C.ggml_add(c.ptr, a.ptr, b.ptr)) }

// MulMat computes a matrix multiply: a^T * b in ggml's convention.
func (c *Context) MulMat(a, b *Tensor) *Tensor { return wrap(c, C.ggml_mul_mat(c.ptr, a.ptr, b.ptr)) }

// Repeat broadcasts a to the shape of b.
func (c *Context) Repeat(a, b *Tensor) *Tensor { return wrap(c, C.ggml_repeat(c.ptr, a.ptr, b.ptr)) }

// View1D creates a 1-D view of ne0 elements into a's storage, starting
// offsetBytes bytes from the start of a's data.
func (c *Context) View1D(a *Tensor, ne0 int64, offsetBytes int64) *Tensor {
	return wrap(c, C.ggml_view_1d(c.ptr, a.ptr, C.int64_t(ne0), C.size_t(offsetBytes)))
}

// View2D creates a 2-D view into a's storage.
func (c *Context) View2D(a *Tensor, ne0, ne1 int64, nb1 int64, offsetBytes int64) *Tensor {
	return wrap(c, C.ggml_view_2d(c.ptr, a.ptr, C.int64_t(ne0), C.int64_t(ne1), C.size_t(nb1), C.size_t(offsetBytes)))
}

// Cpy copies a into b's storage and returns b.
func (c *Context) Cpy(a, b *Tensor) *Tensor { return wrap(c, C.ggml_cpy(c.ptr, a.ptr, b.ptr)) }

// Permute reorders a's axes.
func (c *Context) Permute(a *Tensor, axis0, axis1, axis2, axis3 int) *Tensor {
	return wrap(c, C.ggml_permute(c.ptr, a.ptr, C.int(axis0), C.int(axis1), C.int(axis2), C.int(axis3)))
}

// Reshape3D reinterprets a's storage with a new 3-D shape.
func (c *Context) Reshape3D(a *Tensor, ne0, ne1, ne2 int64) *Tensor {
	return wrap(c, C.ggml_reshape_3d(c.ptr, a.ptr, C.int64_t(ne0), C.int64_t(ne1), C.int64_t(ne2)))
}

// Scale multiplies every element of a by s.
func (c *Context) Scale(a *Tensor, s float32) *Tensor {
	return wrap(c, C.ggml_scale(c.ptr, a.ptr, C.float(s)))
}

// Alibi applies the ALiBi positional bias over attention logits a.
func (c *Context) Alibi(a *Tensor, nPast, nHead int, bias float32) *Tensor {
	return wrap(c, C.ggml_alibi(c.ptr, a.ptr, C.int(nPast), C.int(nHead), C.float(bias)))
}

// DiagMaskInf masks the upper triangle of a beyond nPast with -inf.
func (c *Context) DiagMaskInf(a *Tensor, nPast int) *Tensor {
	return wrap(c, C.ggml_diag_mask_inf(c.ptr, a.ptr, C.int(nPast)))
}

// SoftMax applies row-wise softmax.
func (c *Context) SoftMax(a *Tensor) *Tensor { return wrap(c, C.ggml_soft_max(c.ptr, a.ptr)) }

// Gelu applies the GELU activation elementwise.
func (c *Context) Gelu(a *Tensor) *Tensor { return wrap(c, C.ggml_gelu(c.ptr, a.ptr)) }

// Graph wraps a ggml computation graph: a forward-expanded DAG of ops,
// compiled and dispatched across n_threads worker threads inside the
// runtime when Compute is called.
type Graph struct {
	ptr *C.struct_ggml_cgraph
	ctx *Context
}

// NewGraph allocates a fresh computation graph in ctx.
func (c *Context) NewGraph() *Graph {
	return &Graph{ptr: C.wz_new_graph(c.ptr), ctx: c}
}

// BuildForwardExpand appends every op needed to produce t's value to the
// graph, in dependency order.
func (g *Graph) BuildForwardExpand(t *Tensor) {
	C.ggml_build_forward_expand(g.ptr, t.ptr)
}

// Compute dispatches the graph across nThreads worker threads.
func (g *Graph) Compute(nThreads int) error {
	rc := C.wz_graph_compute(g.ctx.ptr, g.ptr, C.int(nThreads))
	if rc != 0 {
		return fmt.Errorf("ggml: graph compute failed with code %d", int(rc))
	}
	return nil
}
