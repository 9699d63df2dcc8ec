package models

import "time"

// FileInfo represents a directory entry for display
type FileInfo struct {
	Name    string
	Path    string // root-relative, slash separated
	Size    int64
	ModTime time.Time
	IsDir   bool
	IsImage bool
}
