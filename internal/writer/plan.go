// Package writer fans the rows of each split out to one or more chunk files.
//
// A Router owns one bounded channel per chunk and round-robins rows across
// them; one ChunkWriter per channel drains it into a file. The channels are
// small on purpose: a slow writer blocks the dispatcher instead of letting
// rows pile up in memory.
package writer

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/szibis/datasplit/internal/compression"
)

// Target describes one split to the planner. Exactly one of Rows (row mode)
// or Proportion (proportion mode) is meaningful.
type Target struct {
	Name       string
	ByRows     bool
	Rows       uint64
	Proportion float64
}

// ChunkPlan is the fixed chunk layout of one split.
type ChunkPlan struct {
	// Chunks is the number of chunk writers (and channels) for the split.
	Chunks int
	// FirstID is the chunk id of the first writer; writer i starts at
	// FirstID+i.
	FirstID int
	// Stride is how far a writer advances its chunk id when it rotates,
	// skipping the ids owned by its siblings.
	Stride int
	// Numbered is false when the split is a single unnumbered file.
	Numbered bool
}

// Plan decides how many chunks a split needs. A zero chunkSize disables
// chunking; a zero totalRows means the input size is unknown.
func Plan(t Target, chunkSize, totalRows uint64) ChunkPlan {
	if chunkSize == 0 {
		return ChunkPlan{Chunks: 1, Stride: 1}
	}
	var n int
	switch {
	case t.ByRows:
		n = int(math.Ceil(float64(t.Rows) / float64(chunkSize)))
	case totalRows == 0:
		// Unknown size: open a pair and let the writers rotate.
		n = 2
	default:
		// One spare chunk absorbs estimation error.
		n = int(math.Ceil(float64(totalRows)*t.Proportion/float64(chunkSize))) + 1
		if n < 2 {
			n = 2
		}
	}
	return ChunkPlan{Chunks: n, Stride: max(n, 1), Numbered: n > 1}
}

// Naming builds chunk file paths: {Dir}/{split}/{Stem}.{split}[.{id:04}].csv{ext}.
type Naming struct {
	Dir         string
	Stem        string
	Compression compression.Type
}

// NamingFor derives the output directory and stem from the input path or
// output prefix. The stem drops a compression suffix and then one more
// extension, so "data.csv.gz" becomes "data".
func NamingFor(path string, comp compression.Type) Naming {
	base := compression.TrimExtension(filepath.Base(path))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return Naming{Dir: filepath.Dir(path), Stem: base, Compression: comp}
}

// Path returns the file path for a chunk of split.
func (n Naming) Path(split string, id int, numbered bool) string {
	chunk := ""
	if numbered {
		chunk = fmt.Sprintf(".%04d", id)
	}
	file := fmt.Sprintf("%s.%s%s.csv%s", n.Stem, split, chunk, n.Compression.Extension())
	return filepath.Join(n.Dir, split, file)
}
