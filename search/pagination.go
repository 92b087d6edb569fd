package search

import "fmt"

// Pagination describes where a page of results sits in the full hit list.
type Pagination struct {
	TotalHits  int
	Documents  int
	PageHits   int
	Start      int
	End        int
	HasMore    bool
	NextOffset int
}

// Paginate computes pagination for items fetched at offset with limit per page.
// More results exist only when a full page of distinct documents came back
// and the API reports more hits than were returned.
func Paginate(items []Record, totalHits, offset, limit int) Pagination {
	docs := make(map[string]struct{}, len(items))
	for i := range items {
		docs[items[i].DocumentID()] = struct{}{}
	}

	p := Pagination{
		TotalHits: totalHits,
		Documents: len(docs),
		PageHits:  len(items),
	}
	if limit <= 0 {
		return p
	}
	p.HasMore = len(docs) == limit && totalHits > len(items)
	p.Start = offset/limit*limit + 1
	p.End = p.Start + len(docs) - 1
	if p.HasMore {
		p.NextOffset = offset + limit
	}
	return p
}

// Footer is the pagination hint appended to tool output, or "" when there
// is nothing more to fetch.
func (p Pagination) Footer(limit int) string {
	if !p.HasMore {
		return ""
	}
	return fmt.Sprintf("\n\n📊 **Pagination**: Showing documents %d-%d\n💡 Use `offset=%d` to see the next %d documents",
		p.Start, p.End, p.NextOffset, limit)
}
