package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const posterBaseURL = "https://image.tmdb.org/t/p/w500"

// ImageHandler proxies poster images from the catalog CDN with an on-disk
// cache, so the browser only ever talks to this server.
type ImageHandler struct {
	cacheDir   string
	httpc      *http.Client
	mu         sync.Mutex
	inProgress map[string]chan struct{}
}

// NewImageHandler creates the poster proxy. client may be nil.
func NewImageHandler(cacheDir string, client *http.Client) *ImageHandler {
	imgCacheDir := filepath.Join(cacheDir, "posters")
	if err := os.MkdirAll(imgCacheDir, 0755); err != nil {
		log.Printf("[images] could not create cache dir %s: %v", imgCacheDir, err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ImageHandler{
		cacheDir:   imgCacheDir,
		httpc:      client,
		inProgress: make(map[string]chan struct{}),
	}
}

// Poster streams one poster by its catalog path (e.g. /abc123.jpg). The
// content type is sniffed from the bytes rather than trusted from upstream.
func (h *ImageHandler) Poster(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" || !strings.HasPrefix(path, "/") || strings.Contains(path, "..") {
		writeError(w, http.StatusBadRequest, errors.New("invalid poster path"))
		return
	}

	cachePath := filepath.Join(h.cacheDir, cacheKey(path))
	if h.serveCached(w, cachePath) {
		return
	}

	// Dedupe concurrent fetches of the same poster.
	h.mu.Lock()
	if ch, exists := h.inProgress[cachePath]; exists {
		h.mu.Unlock()
		<-ch
		if h.serveCached(w, cachePath) {
			return
		}
		writeError(w, http.StatusBadGateway, errors.New("poster fetch failed"))
		return
	}
	ch := make(chan struct{})
	h.inProgress[cachePath] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.inProgress, cachePath)
		close(ch)
		h.mu.Unlock()
	}()

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, posterBaseURL+path, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp, err := h.httpc.Do(req)
	if err != nil {
		log.Printf("[images] fetch error for %s: %v", path, err)
		writeError(w, http.StatusBadGateway, fmt.Errorf("fetch poster: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		writeError(w, http.StatusNotFound, errors.New("poster not found"))
		return
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[images] upstream returned %d for %s", resp.StatusCode, path)
		writeError(w, http.StatusBadGateway, fmt.Errorf("poster upstream returned %d", resp.StatusCode))
		return
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("read poster: %w", err))
		return
	}
	kind := mimetype.Detect(data)
	if !strings.HasPrefix(kind.String(), "image/") {
		writeError(w, http.StatusBadGateway, errors.New("upstream did not return an image"))
		return
	}

	// Cache via temp file and atomic rename. A cache failure is not fatal.
	tmpPath := cachePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err == nil {
		if err := os.Rename(tmpPath, cachePath); err != nil {
			os.Remove(tmpPath)
		}
	}

	w.Header().Set("Content-Type", kind.String())
	w.Header().Set("Cache-Control", "public, max-age=2592000")
	w.Header().Set("X-Cache", "MISS")
	w.Write(data)
}

func (h *ImageHandler) serveCached(w http.ResponseWriter, cachePath string) bool {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return false
	}
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Cache-Control", "public, max-age=2592000")
	w.Header().Set("X-Cache", "HIT")
	w.Write(data)
	return true
}

// ClearCache removes all cached posters.
func (h *ImageHandler) ClearCache() error {
	entries, err := os.ReadDir(h.cacheDir)
	if err != nil {
		return err
	}
	var failed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(h.cacheDir, entry.Name())); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to remove %d cached posters", failed)
	}
	return nil
}

func cacheKey(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:16])
}
