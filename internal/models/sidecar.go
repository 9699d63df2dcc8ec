package models

// SidecarFileName is the metadata file written to every synced directory
const SidecarFileName = "bundles.json"

// SidecarEntry locates one thumbnail inside its bundle composite
type SidecarEntry struct {
	ThumbnailName string `json:"thumbnail_name"`
	BasePath      string `json:"base_path"`
	RelativePath  string `json:"relative_path"`
	PositionX     int    `json:"position_x"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	OriginalName  string `json:"original_name"`
	OriginalSize  int64  `json:"original_size"`
}
