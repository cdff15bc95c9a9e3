// Copyright (C) 2024 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package state

import (
	"github.com/zmike/Vulkan-ValidationLayers/core/math/interval"
)

// AspectFlags selects the aspects of an image.
type AspectFlags uint32

const (
	AspectColor AspectFlags = 1 << iota
	AspectDepth
	AspectStencil
)

// RemainingMipLevels selects all mip levels from the base level.
const RemainingMipLevels = ^uint32(0)

// RemainingArrayLayers selects all array layers from the base layer.
const RemainingArrayLayers = ^uint32(0)

// Extent is the size of an image or region in texels.
type Extent struct {
	Width, Height, Depth uint32
}

// Offset is a position within an image in texels.
type Offset struct {
	X, Y, Z uint32
}

// Subresource identifies one (aspect, mip, layer) of an image.
type Subresource struct {
	Aspect AspectFlags
	Mip    uint32
	Layer  uint32
}

// SubresourceRange selects a set of subresources.
type SubresourceRange struct {
	Aspects    AspectFlags
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
}

// ImageInfo is the shape of an image.
type ImageInfo struct {
	Aspects     AspectFlags
	Extent      Extent
	MipLevels   uint32
	ArrayLayers uint32
}

// Encoder maps image subresources onto a contiguous texel address space.
//
// The layout is aspect major: for each aspect, the mip chain; within a mip,
// the array layers are contiguous blocks; within a layer, texels are in
// (z, y, x) order. Projecting a subresource range therefore yields at most
// one span per (aspect, mip) for full extent accesses.
type Encoder struct {
	info       ImageInfo
	aspects    []AspectFlags
	mipExtents []Extent
	mipTexels  []uint64
	mipOffsets []uint64
	aspectSize uint64
}

// NewEncoder builds the subresource encoder for an image shape.
func NewEncoder(info ImageInfo) *Encoder {
	e := &Encoder{info: info}
	for _, a := range []AspectFlags{AspectColor, AspectDepth, AspectStencil} {
		if info.Aspects&a != 0 {
			e.aspects = append(e.aspects, a)
		}
	}
	ext := info.Extent
	offset := uint64(0)
	for m := uint32(0); m < info.MipLevels; m++ {
		texels := uint64(ext.Width) * uint64(ext.Height) * uint64(ext.Depth)
		e.mipExtents = append(e.mipExtents, ext)
		e.mipTexels = append(e.mipTexels, texels)
		e.mipOffsets = append(e.mipOffsets, offset)
		offset += texels * uint64(info.ArrayLayers)
		ext = Extent{halve(ext.Width), halve(ext.Height), halve(ext.Depth)}
	}
	e.aspectSize = offset
	return e
}

func halve(v uint32) uint32 {
	if v > 1 {
		return v / 2
	}
	return 1
}

// TotalSize returns the size of the image's address space in texels.
func (e *Encoder) TotalSize() uint64 {
	return e.aspectSize * uint64(len(e.aspects))
}

// MipExtent returns the extent of the given mip level.
func (e *Encoder) MipExtent(mip uint32) Extent { return e.mipExtents[mip] }

func (e *Encoder) aspectIndex(a AspectFlags) int {
	for i, x := range e.aspects {
		if x == a {
			return i
		}
	}
	return -1
}

// Encode returns the flat address of a texel offset within a subresource.
func (e *Encoder) Encode(sub Subresource, texel uint64) uint64 {
	ai := e.aspectIndex(sub.Aspect)
	return uint64(ai)*e.aspectSize + e.mipOffsets[sub.Mip] + uint64(sub.Layer)*e.mipTexels[sub.Mip] + texel
}

// EncodeTexel returns the flat address of the texel at (x, y, z) within a
// subresource.
func (e *Encoder) EncodeTexel(sub Subresource, o Offset) uint64 {
	ext := e.mipExtents[sub.Mip]
	texel := (uint64(o.Z)*uint64(ext.Height)+uint64(o.Y))*uint64(ext.Width) + uint64(o.X)
	return e.Encode(sub, texel)
}

// Decode returns the subresource and texel offset of a flat address.
func (e *Encoder) Decode(addr uint64) (Subresource, uint64) {
	ai := addr / e.aspectSize
	rem := addr % e.aspectSize
	mip := uint32(0)
	for m := len(e.mipOffsets) - 1; m >= 0; m-- {
		if rem >= e.mipOffsets[m] {
			mip = uint32(m)
			break
		}
	}
	rem -= e.mipOffsets[mip]
	layer := rem / e.mipTexels[mip]
	texel := rem % e.mipTexels[mip]
	return Subresource{Aspect: e.aspects[ai], Mip: mip, Layer: uint32(layer)}, texel
}

// ClampRange resolves the remaining-levels sentinels and drops aspects the
// image does not have.
func (e *Encoder) ClampRange(r SubresourceRange) SubresourceRange {
	r.Aspects &= e.info.Aspects
	if r.BaseMip >= e.info.MipLevels {
		r.BaseMip, r.MipCount = 0, 0
		return r
	}
	if r.MipCount == RemainingMipLevels || r.BaseMip+r.MipCount > e.info.MipLevels {
		r.MipCount = e.info.MipLevels - r.BaseMip
	}
	if r.BaseLayer >= e.info.ArrayLayers {
		r.BaseLayer, r.LayerCount = 0, 0
		return r
	}
	if r.LayerCount == RemainingArrayLayers || r.BaseLayer+r.LayerCount > e.info.ArrayLayers {
		r.LayerCount = e.info.ArrayLayers - r.BaseLayer
	}
	return r
}

// ImageRangeGen is a single forward pass generator over the global address
// spans of a subresource range, optionally restricted to a region. It
// merges spans that are contiguous in the encoded layout, so a full extent
// access yields one span per (aspect, mip).
type ImageRangeGen struct {
	enc    *Encoder
	base   uint64
	rng    SubresourceRange
	region bool
	offset Offset
	extent Extent

	aspect int // index into selected aspects
	sel    []AspectFlags
	mip    uint32
	layer  uint32
	z      uint32
	y      uint32
	done   bool
}

// NewImageRangeGen returns a generator over the full extent of every
// subresource in rng.
func NewImageRangeGen(img *ImageState, rng SubresourceRange) *ImageRangeGen {
	return newImageGen(img, rng, false, Offset{}, Extent{})
}

// NewImageRegionGen returns a generator over the given region of every
// subresource in rng. The region is interpreted in the extent of each
// selected mip level.
func NewImageRegionGen(img *ImageState, rng SubresourceRange, offset Offset, extent Extent) *ImageRangeGen {
	return newImageGen(img, rng, true, offset, extent)
}

func newImageGen(img *ImageState, rng SubresourceRange, region bool, offset Offset, extent Extent) *ImageRangeGen {
	g := &ImageRangeGen{
		enc:    img.Encoder,
		base:   img.Base,
		rng:    img.Encoder.ClampRange(rng),
		region: region,
		offset: offset,
		extent: extent,
	}
	for _, a := range img.Encoder.aspects {
		if g.rng.Aspects&a != 0 {
			g.sel = append(g.sel, a)
		}
	}
	if len(g.sel) == 0 || g.rng.MipCount == 0 || g.rng.LayerCount == 0 {
		g.done = true
	}
	g.mip = g.rng.BaseMip
	g.layer = g.rng.BaseLayer
	g.z = offset.Z
	g.y = offset.Y
	return g
}

// Next implements access.RangeGen.
func (g *ImageRangeGen) Next() (interval.U64Span, bool) {
	if g.done {
		return interval.U64Span{}, false
	}
	sub := Subresource{Aspect: g.sel[g.aspect], Mip: g.mip, Layer: g.layer}
	ext := g.enc.MipExtent(g.mip)

	if !g.region {
		// Whole subresource: the layer range is contiguous within the mip.
		start := g.enc.Encode(sub, 0)
		end := start + uint64(g.rng.LayerCount)*g.enc.mipTexels[g.mip]
		g.advanceMip()
		return g.span(start, end), true
	}

	off, reg := clampRegion(g.offset, g.extent, ext)
	if reg.Width == 0 || reg.Height == 0 || reg.Depth == 0 {
		g.done = true
		return interval.U64Span{}, false
	}
	fullW := off.X == 0 && reg.Width == ext.Width
	fullH := off.Y == 0 && reg.Height == ext.Height
	fullD := off.Z == 0 && reg.Depth == ext.Depth

	switch {
	case fullW && fullH && fullD:
		// Whole layers; contiguous across the layer range.
		start := g.enc.Encode(sub, 0)
		end := start + uint64(g.rng.LayerCount)*g.enc.mipTexels[g.mip]
		g.advanceMip()
		return g.span(start, end), true
	case fullW && fullH:
		// A contiguous run of slices within one layer.
		start := g.enc.EncodeTexel(sub, Offset{0, 0, off.Z})
		end := g.enc.EncodeTexel(sub, Offset{0, 0, off.Z + reg.Depth - 1}) + uint64(ext.Width)*uint64(ext.Height)
		g.advanceLayer()
		return g.span(start, end), true
	case fullW:
		// A contiguous run of rows within one slice.
		start := g.enc.EncodeTexel(sub, Offset{0, off.Y, g.z})
		end := g.enc.EncodeTexel(sub, Offset{0, off.Y + reg.Height - 1, g.z}) + uint64(ext.Width)
		g.advanceZ(off, reg)
		return g.span(start, end), true
	default:
		// One row.
		start := g.enc.EncodeTexel(sub, Offset{off.X, g.y, g.z})
		end := start + uint64(reg.Width)
		g.advanceY(off, reg)
		return g.span(start, end), true
	}
}

func (g *ImageRangeGen) span(start, end uint64) interval.U64Span {
	return interval.U64Span{Start: g.base + start, End: g.base + end}
}

func clampRegion(off Offset, ext Extent, mip Extent) (Offset, Extent) {
	if off.X >= mip.Width || off.Y >= mip.Height || off.Z >= mip.Depth {
		return off, Extent{}
	}
	if off.X+ext.Width > mip.Width {
		ext.Width = mip.Width - off.X
	}
	if off.Y+ext.Height > mip.Height {
		ext.Height = mip.Height - off.Y
	}
	if off.Z+ext.Depth > mip.Depth {
		ext.Depth = mip.Depth - off.Z
	}
	return off, ext
}

func (g *ImageRangeGen) advanceY(off Offset, reg Extent) {
	g.y++
	if g.y < off.Y+reg.Height {
		return
	}
	g.y = off.Y
	g.advanceZ(off, reg)
}

func (g *ImageRangeGen) advanceZ(off Offset, reg Extent) {
	g.z++
	if g.z < off.Z+reg.Depth {
		return
	}
	g.z = off.Z
	g.advanceLayer()
}

func (g *ImageRangeGen) advanceLayer() {
	g.layer++
	if g.layer < g.rng.BaseLayer+g.rng.LayerCount {
		g.z = g.offset.Z
		g.y = g.offset.Y
		return
	}
	g.layer = g.rng.BaseLayer
	g.advanceMip()
}

func (g *ImageRangeGen) advanceMip() {
	g.mip++
	g.layer = g.rng.BaseLayer
	g.z = g.offset.Z
	g.y = g.offset.Y
	if g.mip < g.rng.BaseMip+g.rng.MipCount {
		return
	}
	g.mip = g.rng.BaseMip
	g.aspect++
	if g.aspect >= len(g.sel) {
		g.done = true
	}
}
