package session

import (
	"github.com/blevesearch/bleve"
	"github.com/mohammad-safakhou/specharvest/tools/web_ingest/models"
)

const snippetRunes = 240

// NewIndex returns an empty in-memory bleve index.
func NewIndex() (bleve.Index, error) {
	return bleve.NewMemOnly(bleve.NewIndexMapping())
}

// SearchIndex runs a match query against index and resolves hits through meta.
func SearchIndex(index bleve.Index, meta map[string]models.DocChunk, query string, size int) ([]models.Hit, error) {
	if size <= 0 {
		size = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), size, 0, false)
	res, err := index.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]models.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		chunk, ok := meta[h.ID]
		if !ok {
			continue
		}
		out = append(out, models.Hit{
			DocID:      chunk.DocID,
			SourceName: chunk.SourceName,
			Title:      chunk.Title,
			Section:    chunk.Section,
			URL:        chunk.URL,
			Score:      h.Score,
			Snippet:    snippet(chunk.Text),
		})
	}
	return out, nil
}

func snippet(text string) string {
	r := []rune(text)
	if len(r) <= snippetRunes {
		return text
	}
	return string(r[:snippetRunes]) + "…"
}
