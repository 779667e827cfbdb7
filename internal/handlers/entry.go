package handlers

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"path"
	"strings"
)

// EntryHandler serves the HTML entry point at / and the bundled assets next to it
type EntryHandler struct {
	fsys   fs.FS
	entry  string
	inject []byte
	page   []byte
}

// NewEntryHandler creates a new EntryHandler. When inject is non-nil the
// entry is re-read on every request and inject is placed before </body>.
func NewEntryHandler(fsys fs.FS, entry string, inject []byte) (*EntryHandler, error) {
	page, err := fs.ReadFile(fsys, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", entry, err)
	}

	h := &EntryHandler{
		fsys:   fsys,
		entry:  entry,
		inject: inject,
	}
	if inject == nil {
		h.page = page
	}

	return h, nil
}

// ServeHTTP handles GET / and GET requests for bundled assets
func (h *EntryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" || name == h.entry {
		h.serveEntry(w)
		return
	}

	if hidden(name) {
		http.NotFound(w, r)
		return
	}
	info, err := fs.Stat(h.fsys, name)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	h.serveAsset(w, r, name, info)
}

// serveAsset writes an asset that has already been stat'ed. Index documents
// in subdirectories are served as-is rather than redirected to their directory.
func (h *EntryHandler) serveAsset(w http.ResponseWriter, r *http.Request, name string, info fs.FileInfo) {
	f, err := h.fsys.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	content, ok := f.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(f)
		if err != nil {
			log.Printf("Error reading asset %s: %v", name, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		content = bytes.NewReader(data)
	}

	http.ServeContent(w, r, name, info.ModTime(), content)
}

func (h *EntryHandler) serveEntry(w http.ResponseWriter) {
	page := h.page
	if page == nil {
		var err error
		page, err = fs.ReadFile(h.fsys, h.entry)
		if err != nil {
			log.Printf("Error reading entry %s: %v", h.entry, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		page = injectBeforeBody(page, h.inject)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

// injectBeforeBody places snippet before the last </body>, or at the end
// of the document when there is none
func injectBeforeBody(page, snippet []byte) []byte {
	if len(snippet) == 0 {
		return page
	}

	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if i < 0 {
		return append(append([]byte{}, page...), snippet...)
	}

	out := make([]byte, 0, len(page)+len(snippet))
	out = append(out, page[:i]...)
	out = append(out, snippet...)
	out = append(out, page[i:]...)
	return out
}

// hidden reports whether any path element is a dotfile
func hidden(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
