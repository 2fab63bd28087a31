package camera

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync"
)

// frameHub keeps the latest frame of a stream and fans frames out to subscribers.
// Frames may arrive either decoded or as JPEG bytes; JPEG frames are decoded lazily.
type frameHub struct {
	mu         sync.Mutex
	latestImg  image.Image
	latestJPEG []byte
	subs       map[int]chan image.Image
	nextID     int
	closed     bool
	ready      chan struct{}
	readyOnce  sync.Once
}

func newFrameHub() *frameHub {
	return &frameHub{
		subs:  make(map[int]chan image.Image),
		ready: make(chan struct{}),
	}
}

// firstFrame is closed once the first frame has been published.
func (h *frameHub) firstFrame() <-chan struct{} {
	return h.ready
}

func (h *frameHub) publishJPEG(data []byte) {
	h.mu.Lock()
	h.latestJPEG = data
	h.latestImg = nil
	var img image.Image
	if len(h.subs) > 0 {
		img = h.decodeLocked()
	}
	h.fanOutLocked(img)
	h.mu.Unlock()
	h.readyOnce.Do(func() { close(h.ready) })
}

func (h *frameHub) publishImage(img image.Image) {
	h.mu.Lock()
	h.latestImg = img
	h.latestJPEG = nil
	h.fanOutLocked(img)
	h.mu.Unlock()
	h.readyOnce.Do(func() { close(h.ready) })
}

func (h *frameHub) fanOutLocked(img image.Image) {
	if img == nil {
		return
	}
	for _, ch := range h.subs {
		// Slow subscribers skip frames.
		select {
		case ch <- img:
		default:
		}
	}
}

func (h *frameHub) decodeLocked() image.Image {
	if h.latestImg != nil {
		return h.latestImg
	}
	if len(h.latestJPEG) == 0 {
		return nil
	}
	img, err := jpeg.Decode(bytes.NewReader(h.latestJPEG))
	if err != nil {
		return nil
	}
	h.latestImg = img
	return img
}

func (h *frameHub) latest() image.Image {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.decodeLocked()
}

func (h *frameHub) subscribe() (<-chan image.Image, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan image.Image, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *frameHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
