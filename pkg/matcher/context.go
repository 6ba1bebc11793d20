package matcher

import "bytes"

// surroundingLines returns up to n lines of content on either side of the
// span [start,end). The span's own line is split at the span, so before ends
// at start and after begins at end (past a newline sitting exactly at end).
// Both results are copies and never alias content.
func surroundingLines(content []byte, start, end, n int) (before, after []byte) {
	if n <= 0 || start < 0 || end > len(content) || start > end {
		return nil, nil
	}
	if b := linesBefore(content, start, n); len(b) > 0 {
		before = bytes.Clone(b)
	}
	if a := linesAfter(content, end, n); len(a) > 0 {
		after = bytes.Clone(a)
	}
	return before, after
}

func linesBefore(content []byte, start, n int) []byte {
	from := start
	for range n + 1 {
		nl := bytes.LastIndexByte(content[:from], '\n')
		if nl < 0 {
			return content[:start]
		}
		from = nl
	}
	return content[from+1 : start]
}

func linesAfter(content []byte, end, n int) []byte {
	if end < len(content) && content[end] == '\n' {
		end++
	}
	if end >= len(content) {
		return nil
	}
	to := end
	for range n {
		nl := bytes.IndexByte(content[to:], '\n')
		if nl < 0 {
			return content[end:]
		}
		to += nl + 1
	}
	return content[end:to]
}
