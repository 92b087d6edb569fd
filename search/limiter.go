package search

// LimitSnippets truncates every record's snippet list to its first max
// entries, in place. Records themselves are always kept, so max=0 leaves
// records that hit with nothing shown. Callers reject negative values.
func LimitSnippets(resp *RecordsResponse, max int) {
	if resp == nil || max < 0 {
		return
	}
	for i := range resp.Items {
		tt := resp.Items[i].TranscribedText
		if tt != nil && len(tt.Snippets) > max {
			tt.Snippets = tt.Snippets[:max:max]
		}
	}
}

// CountSnippets sums the snippets across all records.
func CountSnippets(resp *RecordsResponse) int {
	if resp == nil {
		return 0
	}
	n := 0
	for i := range resp.Items {
		n += resp.Items[i].SnippetCount()
	}
	return n
}
