// Package capture samples frames from a looping video surface on a fixed
// cadence and feeds them into the ingestion pipeline.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spotwise-backend/internal/detect"
)

// ErrNotReady means the surface has no decodable frame right now.
var ErrNotReady = errors.New("frame source is not ready")

// Frame is one sampled, JPEG-encoded picture.
type Frame struct {
	Seq        uint64
	TraceID    string
	CapturedAt time.Time
	Image      detect.Image
}

// FrameSource is the video surface the loop samples.
type FrameSource interface {
	// Ready is closed once the surface can produce frames.
	Ready() <-chan struct{}
	Frame() (Frame, error)
}

// DirSource plays a directory of still images in name order, looping at the
// end, as a stand-in for the recorded parking-lot video.
type DirSource struct {
	dir     string
	quality int

	mu    sync.Mutex
	files []string
	next  int
	seq   uint64

	ready     chan struct{}
	readyOnce sync.Once
}

// NewDirSource creates a source over dir. Frames are re-encoded as JPEG at
// quality. Call Open before use.
func NewDirSource(dir string, quality int) *DirSource {
	return &DirSource{
		dir:     dir,
		quality: quality,
		ready:   make(chan struct{}),
	}
}

// Open lists the frame files and signals readiness once the first one
// decodes.
func (d *DirSource) Open() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("failed to read frames dir %s: %w", d.dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(d.dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no jpg or png frames in %s", d.dir)
	}
	sort.Strings(files)

	if _, err := d.encode(files[0]); err != nil {
		return fmt.Errorf("first frame is not decodable: %w", err)
	}

	d.mu.Lock()
	d.files = files
	d.mu.Unlock()

	d.readyOnce.Do(func() { close(d.ready) })
	log.Printf("Frame source ready: %d frames in %s", len(files), d.dir)
	return nil
}

func (d *DirSource) Ready() <-chan struct{} {
	return d.ready
}

// Frame returns the next frame. A file that fails to decode yields
// ErrNotReady and is skipped on the next call.
func (d *DirSource) Frame() (Frame, error) {
	d.mu.Lock()
	if len(d.files) == 0 {
		d.mu.Unlock()
		return Frame{}, ErrNotReady
	}
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	data, err := d.encode(path)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %s: %v", ErrNotReady, filepath.Base(path), err)
	}

	return Frame{
		Seq:        seq,
		TraceID:    uuid.New().String(),
		CapturedAt: time.Now(),
		Image: detect.Image{
			Data:        data,
			Filename:    fmt.Sprintf("frame-%d.jpg", seq),
			ContentType: "image/jpeg",
		},
	}, nil
}

func (d *DirSource) encode(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
