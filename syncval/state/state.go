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

// Package state tracks the read-only metadata of the API objects the
// validator needs: extents, subresource layouts and queue capabilities.
// Object lifetimes and parameter validity are the concern of other layers;
// a lookup of a destroyed or unknown handle returns an error and the caller
// skips the individual check.
package state

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/zmike/Vulkan-ValidationLayers/core/fault"
	"github.com/zmike/Vulkan-ValidationLayers/core/math/interval"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/access"
)

// Handle identifies an API object.
type Handle uint64

// WholeSize selects the remainder of a buffer in range arguments.
const WholeSize = ^uint64(0)

// ErrUnknownHandle is returned when a handle is not registered.
const ErrUnknownHandle = fault.Const("unknown handle")

// BufferState is the tracked metadata of a buffer.
type BufferState struct {
	Handle Handle
	Size   uint64
	// Base is the buffer's offset in the linearized global address space.
	Base uint64
}

// Span returns the global address span of [offset, offset+size) clamped to
// the buffer. size may be WholeSize.
func (b *BufferState) Span(offset, size uint64) interval.U64Span {
	if offset > b.Size {
		offset = b.Size
	}
	end := b.Size
	if size != WholeSize {
		// offset+size saturates; a wrapped sum selects the remainder.
		if reach := offset + size; reach >= offset && reach < end {
			end = reach
		}
	}
	return interval.U64Span{Start: b.Base + offset, End: b.Base + end}
}

// FullSpan returns the global address span of the whole buffer.
func (b *BufferState) FullSpan() interval.U64Span {
	return interval.U64Span{Start: b.Base, End: b.Base + b.Size}
}

// ImageState is the tracked metadata of an image.
type ImageState struct {
	Handle  Handle
	Info    ImageInfo
	Encoder *Encoder
	// Base is the image's offset in the linearized global address space.
	Base uint64

	// Swapchain is set for images owned by a swapchain.
	Swapchain      Handle
	SwapchainIndex uint32
}

// FullRange returns the range selecting every subresource of the image.
func (img *ImageState) FullRange() SubresourceRange {
	return SubresourceRange{
		Aspects:    img.Info.Aspects,
		MipCount:   RemainingMipLevels,
		LayerCount: RemainingArrayLayers,
	}
}

// ImageViewState is a subresource range view of an image.
type ImageViewState struct {
	Handle Handle
	Image  *ImageState
	Range  SubresourceRange
}

// QueueState is the tracked metadata of a queue.
type QueueState struct {
	Handle Handle
	ID     access.QueueID
	Family uint32
	Flags  access.QueueFlags
}

// SwapchainState owns the images presented through it.
type SwapchainState struct {
	Handle Handle
	Images []*ImageState
}

// Tracker is the registry of tracked object metadata.
type Tracker struct {
	mu         sync.RWMutex
	buffers    map[Handle]*BufferState
	images     map[Handle]*ImageState
	views      map[Handle]*ImageViewState
	queues     map[Handle]*QueueState
	swapchains map[Handle]*SwapchainState
	nextBase   uint64
	nextQueue  access.QueueID
}

// NewTracker returns an empty registry.
func NewTracker() *Tracker {
	return &Tracker{
		buffers:    map[Handle]*BufferState{},
		images:     map[Handle]*ImageState{},
		views:      map[Handle]*ImageViewState{},
		queues:     map[Handle]*QueueState{},
		swapchains: map[Handle]*SwapchainState{},
	}
}

// reserve assigns a non-overlapping base address for size units of the
// global address space.
func (t *Tracker) reserve(size uint64) uint64 {
	base := t.nextBase
	t.nextBase += size
	return base
}

// AddBuffer registers a buffer.
func (t *Tracker) AddBuffer(h Handle, size uint64) *BufferState {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := &BufferState{Handle: h, Size: size, Base: t.reserve(size)}
	t.buffers[h] = b
	return b
}

// AddImage registers an image and assigns it an opaque address block
// covering its subresource space.
func (t *Tracker) AddImage(h Handle, info ImageInfo) *ImageState {
	t.mu.Lock()
	defer t.mu.Unlock()
	enc := NewEncoder(info)
	img := &ImageState{Handle: h, Info: info, Encoder: enc, Base: t.reserve(enc.TotalSize())}
	t.images[h] = img
	return img
}

// AddImageView registers a view of an image. The range is clamped to the
// image's subresource space.
func (t *Tracker) AddImageView(h Handle, image Handle, rng SubresourceRange) (*ImageViewState, error) {
	img, err := t.Image(image)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v := &ImageViewState{Handle: h, Image: img, Range: img.Encoder.ClampRange(rng)}
	t.views[h] = v
	return v, nil
}

// AddQueue registers a queue and assigns it a validator queue id.
func (t *Tracker) AddQueue(h Handle, family uint32, flags access.QueueFlags) *QueueState {
	t.mu.Lock()
	defer t.mu.Unlock()
	q := &QueueState{Handle: h, ID: t.nextQueue, Family: family, Flags: flags}
	t.nextQueue++
	t.queues[h] = q
	return q
}

// AddSwapchain registers a swapchain with imageCount images of the given
// shape. The images are registered as well, using the handles supplied.
func (t *Tracker) AddSwapchain(h Handle, imageHandles []Handle, info ImageInfo) *SwapchainState {
	sc := &SwapchainState{Handle: h}
	for i, ih := range imageHandles {
		img := t.AddImage(ih, info)
		img.Swapchain = h
		img.SwapchainIndex = uint32(i)
		sc.Images = append(sc.Images, img)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.swapchains[h] = sc
	return sc
}

// RemoveBuffer unregisters a buffer.
func (t *Tracker) RemoveBuffer(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.buffers, h)
}

// RemoveImage unregisters an image.
func (t *Tracker) RemoveImage(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.images, h)
}

// RemoveImageView unregisters a view.
func (t *Tracker) RemoveImageView(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.views, h)
}

// RemoveSwapchain unregisters a swapchain and its images.
func (t *Tracker) RemoveSwapchain(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sc, ok := t.swapchains[h]; ok {
		for _, img := range sc.Images {
			delete(t.images, img.Handle)
		}
		delete(t.swapchains, h)
	}
}

// Buffer looks up a registered buffer.
func (t *Tracker) Buffer(h Handle) (*BufferState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b, ok := t.buffers[h]; ok {
		return b, nil
	}
	return nil, errors.Wrapf(ErrUnknownHandle, "buffer %#x", uint64(h))
}

// Image looks up a registered image.
func (t *Tracker) Image(h Handle) (*ImageState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if img, ok := t.images[h]; ok {
		return img, nil
	}
	return nil, errors.Wrapf(ErrUnknownHandle, "image %#x", uint64(h))
}

// ImageView looks up a registered image view.
func (t *Tracker) ImageView(h Handle) (*ImageViewState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if v, ok := t.views[h]; ok {
		return v, nil
	}
	return nil, errors.Wrapf(ErrUnknownHandle, "image view %#x", uint64(h))
}

// Queue looks up a registered queue.
func (t *Tracker) Queue(h Handle) (*QueueState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if q, ok := t.queues[h]; ok {
		return q, nil
	}
	return nil, errors.Wrapf(ErrUnknownHandle, "queue %#x", uint64(h))
}

// Swapchain looks up a registered swapchain.
func (t *Tracker) Swapchain(h Handle) (*SwapchainState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if sc, ok := t.swapchains[h]; ok {
		return sc, nil
	}
	return nil, errors.Wrapf(ErrUnknownHandle, "swapchain %#x", uint64(h))
}

// Queues returns all registered queues.
func (t *Tracker) Queues() []*QueueState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*QueueState, 0, len(t.queues))
	for _, q := range t.queues {
		out = append(out, q)
	}
	return out
}
