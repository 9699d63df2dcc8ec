package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
	"github.com/jonasrichard/mediamosaic/internal/models"
	"github.com/jonasrichard/mediamosaic/internal/scanner"
	"github.com/jonasrichard/mediamosaic/internal/sidecar"
	ws "github.com/jonasrichard/mediamosaic/internal/websocket"
)

var listingTmpl = template.Must(template.New("listing").Funcs(template.FuncMap{
	"formatSize": func(size int64) string {
		return humanize.IBytes(uint64(size))
	},
	"join": func(dir, name string) string {
		if dir == "" {
			return name
		}
		return dir + "/" + name
	},
}).Parse(listingTemplate))

// writeError answers with the status matching err's kind.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/serve/", http.StatusFound)
}

// handleSync queues a rebuild and returns without waiting for it.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rel := strings.TrimPrefix(r.URL.Path, "/sync/")

	cmd, err := s.syncer.Sync(r.Context(), rel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":        cmd.ID,
		"directory": cmd.Directory,
		"status":    models.SyncQueued,
		"queued_at": cmd.QueuedAt,
	})
}

func (s *Server) handleServe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rel := strings.TrimPrefix(r.URL.Path, "/serve/")

	abs, err := s.sandbox.ToAbsolute(rel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	info, err := os.Stat(abs)
	if err != nil {
		s.writeError(w, r, apperrors.IO("serve", rel, err))
		return
	}

	if info.IsDir() {
		if sidecar.Exists(abs) {
			s.serveGallery(w, r)
			return
		}
		s.serveListing(w, r, abs)
		return
	}
	s.serveFile(w, r, abs)
}

func (s *Server) serveGallery(w http.ResponseWriter, r *http.Request) {
	shell, err := s.galleryShell()
	if err != nil {
		s.writeError(w, r, apperrors.IO("read gallery shell", s.opts.GalleryShell, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(shell)
}

type listingData struct {
	Dir     string
	Parent  string
	HasUp   bool
	Entries []models.FileInfo
}

func (s *Server) serveListing(w http.ResponseWriter, r *http.Request, abs string) {
	rel, err := s.sandbox.ToRelative(abs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		s.writeError(w, r, apperrors.IO("list directory", rel, err))
		return
	}

	data := listingData{Dir: rel, HasUp: rel != ""}
	if data.HasUp {
		data.Parent = path.Dir(rel)
		if data.Parent == "." {
			data.Parent = ""
		}
	}

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("skipping entry", "dir", rel, "name", entry.Name(), "error", err)
			continue
		}
		data.Entries = append(data.Entries, models.FileInfo{
			Name:    entry.Name(),
			Path:    path.Join(rel, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   entry.IsDir(),
			IsImage: !entry.IsDir() && scanner.IsImage(entry.Name(), s.opts.ImageExtension),
		})
	}
	slices.SortFunc(data.Entries, func(a, b models.FileInfo) int {
		return strings.Compare(a.Name, b.Name)
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := listingTmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render listing", "dir", rel, "error", err)
	}
}

// contentType returns the media type served for a file name.
func contentType(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "json":
		return "application/json"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, abs string) {
	f, err := os.Open(abs)
	if err != nil {
		s.writeError(w, r, apperrors.IO("open", abs, err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, apperrors.IO("stat", abs, err))
		return
	}

	w.Header().Set("Content-Type", contentType(abs))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// handleDeleteOne deletes a single file: GET /delete/{path}.
func (s *Server) handleDeleteOne(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rel := strings.TrimPrefix(r.URL.Path, "/delete/")

	if err := s.deleteFile(rel); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("file deleted", "path", rel)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Deleted %s\n", rel)
}

// deleteFile removes one regular file below the root.
func (s *Server) deleteFile(rel string) error {
	abs, err := s.sandbox.ToAbsolute(rel)
	if err != nil {
		return err
	}
	if abs == s.sandbox.Root() {
		return apperrors.InvalidPath("delete", rel, "refusing to delete the root")
	}

	info, err := os.Lstat(abs)
	if err != nil {
		return apperrors.IO("delete", rel, err)
	}
	if info.IsDir() {
		return apperrors.InvalidPath("delete", rel, "is a directory")
	}

	if err := os.Remove(abs); err != nil {
		return apperrors.IO("delete", rel, err)
	}
	return nil
}

type deleteFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type deleteReport struct {
	Deleted []string        `json:"deleted"`
	Missing []string        `json:"missing"`
	Failed  []deleteFailure `json:"failed"`
}

// handleDeleteMany deletes every listed file independently: POST /delete
// with a JSON array of relative paths. Individual failures never fail the
// request.
func (s *Server) handleDeleteMany(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var paths []string
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&paths); err != nil {
		http.Error(w, "Invalid request body: expected a JSON array of paths", http.StatusBadRequest)
		return
	}

	report := deleteReport{Deleted: []string{}, Missing: []string{}, Failed: []deleteFailure{}}
	for _, rel := range paths {
		err := s.deleteFile(rel)
		switch {
		case err == nil:
			report.Deleted = append(report.Deleted, rel)
		case errors.Is(err, os.ErrNotExist):
			s.logger.Warn("file to delete not found", "path", rel)
			report.Missing = append(report.Missing, rel)
		default:
			s.logger.Error("failed to delete file", "path", rel, "error", err)
			report.Failed = append(report.Failed, deleteFailure{Path: rel, Error: err.Error()})
		}
	}

	s.logger.Info("batch delete", "deleted", len(report.Deleted), "missing", len(report.Missing), "failed", len(report.Failed))
	writeJSON(w, http.StatusOK, report)
}

// handleStatus returns the recent sync runs of a directory.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "Sync history is disabled", http.StatusNotFound)
		return
	}

	abs, err := s.sandbox.ToAbsolute(strings.TrimPrefix(r.URL.Path, "/status/"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rel, err := s.sandbox.ToRelative(abs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	runs, err := s.history.ListRuns(r.Context(), rel, 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*models.SyncRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"directory": rel,
		"synced":    sidecar.Exists(abs),
		"runs":      runs,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.syncer.QueueDepth(),
		"clients":     clients,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "Live updates are disabled", http.StatusNotFound)
		return
	}
	ws.ServeWS(s.hub, w, r)
}
