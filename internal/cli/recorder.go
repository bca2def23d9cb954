package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileRecorder stands in for a microphone: Start loads the clip queued with
// Queue and Stop hands it over.
type FileRecorder struct {
	mu       sync.Mutex
	next     string
	audio    []byte
	mimeType string
	closed   bool
}

func (r *FileRecorder) Queue(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = path
}

func (r *FileRecorder) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("cli: recorder closed")
	}
	if r.next == "" {
		return errors.New("cli: no audio file queued")
	}
	data, err := os.ReadFile(r.next)
	if err != nil {
		return fmt.Errorf("cli: read audio: %w", err)
	}
	r.audio = data
	r.mimeType = audioMIME(r.next)
	r.next = ""
	return nil
}

func (r *FileRecorder) Stop() ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	audio, mt := r.audio, r.mimeType
	r.audio, r.mimeType = nil, ""
	return audio, mt, nil
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.audio = nil
	return nil
}

func audioMIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".webm":
		return "audio/webm"
	case ".m4a", ".mp4":
		return "audio/mp4"
	}
	if mt := mime.TypeByExtension(ext); strings.HasPrefix(mt, "audio/") {
		mt, _, _ = strings.Cut(mt, ";")
		return mt
	}
	return "audio/webm"
}
