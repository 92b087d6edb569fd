package browse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/briangreenhill/ramcp/internal/errs"
)

const (
	// MaxPageNumber caps every page range.
	MaxPageNumber = 1000
	// DefaultPageCount is how many pages an empty specification selects.
	DefaultPageCount = 20
)

// ParsePageRange expands a specification such as "1-3,5,7-9" into sorted,
// unique page numbers no greater than totalPages. An empty specification
// selects the first DefaultPageCount pages.
func ParsePageRange(spec string, totalPages int) ([]int, error) {
	if totalPages <= 0 {
		totalPages = MaxPageNumber
	}
	if strings.TrimSpace(spec) == "" {
		n := min(totalPages, DefaultPageCount)
		pages := make([]int, n)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}

	set := make(map[int]struct{})
	var invalid []string
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if from, to, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(from))
			end, err2 := strconv.Atoi(strings.TrimSpace(to))
			if err1 != nil || err2 != nil || start < 1 || end < 1 {
				invalid = append(invalid, part)
				continue
			}
			for p := start; p <= min(end, totalPages); p++ {
				set[p] = struct{}{}
			}
			continue
		}

		p, err := strconv.Atoi(part)
		switch {
		case err != nil || p < 1:
			invalid = append(invalid, part)
		case p <= totalPages:
			set[p] = struct{}{}
		}
	}

	if len(set) == 0 && len(invalid) > 0 {
		return nil, &errs.InvalidParameterError{
			Param:  "pages",
			Reason: fmt.Sprintf("Invalid page specification: %s. Use numbers like '1-5' or '1,3,5'.", strings.Join(invalid, ", ")),
		}
	}

	pages := make([]int, 0, len(set))
	for p := range set {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages, nil
}
