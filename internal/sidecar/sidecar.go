// Package sidecar builds and persists bundles.json, the metadata file that
// locates every thumbnail inside its bundle composite.
package sidecar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonasrichard/mediamosaic/internal/bundle"
	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
	"github.com/jonasrichard/mediamosaic/internal/models"
)

// Build returns one entry per image of dir in id order. Every image must
// belong to exactly one of bundles.
func Build(dir *models.Directory, bundles []*models.Bundle) ([]models.SidecarEntry, error) {
	idx := bundle.Index(bundles)
	offsets := make(map[int][]int, len(bundles))
	for _, b := range bundles {
		offsets[b.ID] = bundle.Offsets(dir, b)
	}

	entries := make([]models.SidecarEntry, 0, len(dir.Images))
	for _, img := range dir.Images {
		slot, ok := idx[img.ID]
		if !ok {
			return nil, fmt.Errorf("image %d (%s) is not in any bundle", img.ID, img.Name())
		}
		entries = append(entries, models.SidecarEntry{
			ThumbnailName: slot.Bundle.FileName,
			BasePath:      dir.Path,
			RelativePath:  dir.RelPath,
			PositionX:     offsets[slot.Bundle.ID][slot.Position],
			Width:         img.Width,
			Height:        slot.Bundle.Height,
			OriginalName:  img.Name(),
			OriginalSize:  img.Size,
		})
	}
	return entries, nil
}

// Path returns the sidecar location inside dirPath.
func Path(dirPath string) string {
	return filepath.Join(dirPath, models.SidecarFileName)
}

// Encode renders entries the way Write stores them.
func Encode(entries []models.SidecarEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.SidecarEntry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write stores entries as dirPath/bundles.json, replacing any previous file.
func Write(dirPath string, entries []models.SidecarEntry) error {
	path := Path(dirPath)
	data, err := Encode(entries)
	if err != nil {
		return apperrors.IO("encode sidecar", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.IO("write sidecar", path, err)
	}
	return nil
}

// Read loads the sidecar of dirPath.
func Read(dirPath string) ([]models.SidecarEntry, error) {
	path := Path(dirPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.IO("read sidecar", path, err)
	}
	var entries []models.SidecarEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, apperrors.Decode("parse sidecar", path, err)
	}
	return entries, nil
}

// Exists reports whether dirPath holds a sidecar.
func Exists(dirPath string) bool {
	info, err := os.Stat(Path(dirPath))
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes the sidecar of dirPath. A missing sidecar is not an error.
func Remove(dirPath string) error {
	path := Path(dirPath)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperrors.IO("remove sidecar", path, err)
	}
	return nil
}
