package ingestion

import (
	"fmt"
	"path/filepath"
)

// Record is the metadata persisted with one chunk. The fixed fields are
// required on every chunk; Tags is the open extension set carrying
// structured-document attributes and admits scalar values only.
type Record struct {
	// Source is the path of the document the chunk came from.
	Source string
	// Filename is the base name of Source.
	Filename string
	// Folder is the directory containing Source.
	Folder string
	// FileType is the Source extension, including the dot.
	FileType string
	// ChunkIndex is the chunk's 0-based position within its document.
	ChunkIndex int
	// TotalChunks is the number of chunks the document split into.
	TotalChunks int
	// Tags holds additional attributes such as agent classification fields.
	// Values must be strings, integers, floats, or booleans.
	Tags map[string]any
}

// NewRecord builds the Record for one chunk of the document at path.
func NewRecord(path string, index, total int) Record {
	return Record{
		Source:      path,
		Filename:    filepath.Base(path),
		Folder:      filepath.Dir(path),
		FileType:    filepath.Ext(path),
		ChunkIndex:  index,
		TotalChunks: total,
	}
}

// Validate checks the storage invariants: non-empty source, non-negative
// chunk index, and scalar-only tag values.
func (r Record) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("ingestion: record has empty source")
	}
	if r.ChunkIndex < 0 {
		return fmt.Errorf("ingestion: record for %s has negative chunk index %d", r.Source, r.ChunkIndex)
	}
	for k, v := range r.Tags {
		switch v.(type) {
		case string, int, int64, float32, float64, bool:
		default:
			return fmt.Errorf("ingestion: record tag %q has non-scalar type %T", k, v)
		}
	}
	return nil
}

// Payload flattens the record into the scalar map stored alongside the
// chunk text. Tag fields never shadow the fixed fields.
func (r Record) Payload() map[string]any {
	p := make(map[string]any, len(r.Tags)+6)
	for k, v := range r.Tags {
		p[k] = v
	}
	p["source"] = r.Source
	p["filename"] = r.Filename
	p["folder"] = r.Folder
	p["file_type"] = r.FileType
	p["chunk_index"] = r.ChunkIndex
	p["total_chunks"] = r.TotalChunks
	return p
}
