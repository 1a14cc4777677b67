package export

// ExportRequest asks for an EDL of one saved session.
type ExportRequest struct {
	Format    string  `json:"format"`
	FrameRate float64 `json:"frame_rate"`
	OutputDir string  `json:"output_dir"`
}

// ResolvedClip is one EDL event.
type ResolvedClip struct {
	ClipName  string
	MediaPath string
	Caption   string
	StartMs   int
	EndMs     int
}

type ExportResponse struct {
	Status          string   `json:"status"`
	Format          string   `json:"format"`
	OutputPath      string   `json:"output_path"`
	ClipCount       int      `json:"clip_count"`
	UnresolvedClips []string `json:"unresolved_clips"`
}
