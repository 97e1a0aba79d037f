// Package retrieval implements the dense+lexical hybrid retrieval index
// (chunking, vector search, BM25 scoring, and RRF fusion), adapted from
// the teacher's digital.vasic.rag adapter shapes
// (internal/adapters/rag/adapter.go) and digital.vasic.vectordb adapter
// shapes (internal/adapters/vectordb/qdrant/adapter.go) — reimplemented
// directly rather than wrapping those absent modules.
package retrieval

import "strings"

// ChunkerConfig mirrors the teacher adapter's chunker Config shape.
type ChunkerConfig struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

// DefaultChunkerConfig matches the original backend's text splitter:
// 800-character chunks with 100-character overlap, splitting first on
// paragraph boundaries, then lines, then sentences, then words.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:  800,
		Overlap:    100,
		Separators: []string{"\n\n", "\n", ". ", " "},
	}
}

// Chunk is one piece of split text, ready for embedding.
type Chunk struct {
	ID       string
	DocID    string
	Content  string
	StartIdx int
	EndIdx   int
	Metadata map[string]string
}

// RecursiveChunker splits text by trying each separator in order,
// falling back to a hard character cut only when no separator produces
// a piece within ChunkSize.
type RecursiveChunker struct {
	cfg ChunkerConfig
}

// NewRecursiveChunker builds a chunker with cfg, defaulting empty fields.
func NewRecursiveChunker(cfg ChunkerConfig) *RecursiveChunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = []string{"\n\n", "\n", ". ", " "}
	}
	return &RecursiveChunker{cfg: cfg}
}

// Chunk splits text into pieces of at most ChunkSize before overlap; each
// piece after the first is prefixed with up to Overlap characters of its
// predecessor, so a chunk's content can reach ChunkSize+Overlap.
func (c *RecursiveChunker) Chunk(text string) []Chunk {
	pieces := c.split(text, c.cfg.Separators)
	return c.applyOverlap(pieces, text)
}

// ChunkDocument splits a document's content and stamps each chunk with a
// stable id and the document's metadata.
func (c *RecursiveChunker) ChunkDocument(docID string, text string, metadata map[string]string) []Chunk {
	chunks := c.Chunk(text)
	for i := range chunks {
		chunks[i].DocID = docID
		chunks[i].ID = docID + "_chunk_" + itoa(i)
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			chunks[i].Metadata[k] = v
		}
	}
	return chunks
}

// split recursively breaks text on the first separator that yields
// pieces within ChunkSize, falling back to the next separator for any
// piece still too large, and to a hard cut once separators run out.
func (c *RecursiveChunker) split(text string, separators []string) []string {
	if len(text) <= c.cfg.ChunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return hardSplit(text, c.cfg.ChunkSize)
	}

	sep := separators[0]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return c.split(text, separators[1:])
	}

	var out []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if len(p) > c.cfg.ChunkSize {
			out = append(out, c.split(p, separators[1:])...)
		} else {
			out = append(out, p)
		}
	}
	return mergeUndersized(out, c.cfg.ChunkSize, sep)
}

// mergeUndersized coalesces adjacent small pieces back up toward
// ChunkSize so chunking doesn't produce a flood of tiny fragments.
func mergeUndersized(parts []string, chunkSize int, sep string) []string {
	var out []string
	current := ""
	for _, p := range parts {
		candidate := p
		if current != "" {
			candidate = current + sep + p
		}
		if len(candidate) <= chunkSize {
			current = candidate
			continue
		}
		if current != "" {
			out = append(out, current)
		}
		current = p
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

func hardSplit(text string, size int) []string {
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if len(text) > 0 {
		out = append(out, text)
	}
	return out
}

// applyOverlap prepends the tail of the previous piece to each
// subsequent piece so context isn't lost at chunk boundaries, and
// stamps start/end character offsets against the original text.
func (c *RecursiveChunker) applyOverlap(pieces []string, original string) []Chunk {
	chunks := make([]Chunk, 0, len(pieces))
	cursor := 0
	for i, p := range pieces {
		content := p
		if i > 0 && c.cfg.Overlap > 0 {
			prev := pieces[i-1]
			tailLen := c.cfg.Overlap
			if tailLen > len(prev) {
				tailLen = len(prev)
			}
			content = prev[len(prev)-tailLen:] + content
		}
		start := strings.Index(original[cursor:], p)
		if start < 0 {
			start = cursor
		} else {
			start += cursor
		}
		end := start + len(p)
		chunks = append(chunks, Chunk{Content: content, StartIdx: start, EndIdx: end})
		cursor = end
	}
	return chunks
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
