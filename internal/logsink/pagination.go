package logsink

import (
	"bufio"
	"os"
)

// ReadPage returns the non-blank lines of the file at path in newest-first
// order, skipping (page-1)*pageSize and taking up to pageSize, along with
// the total non-blank line count. page and pageSize are clamped to >= 1
// before use. Missing files are treated as empty (zero lines, zero total).
//
// The spec's pagination guarantee is that no line may be split across a
// read boundary. Reading and splitting the whole file in one pass (rather
// than scanning fixed-size chunks backwards from the end) satisfies that
// guarantee trivially, at the cost of not scaling to very large logs —
// an optimization left for a future chunked reader behind this same
// signature.
func ReadPage(path string, page, pageSize int) (lines []string, total int, err error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	all, err := readNonBlankLines(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	total = len(all)
	newestFirst := make([]string, total)
	for i, l := range all {
		newestFirst[total-1-i] = l
	}

	skip := (page - 1) * pageSize
	if skip >= total {
		return []string{}, total, nil
	}
	end := skip + pageSize
	if end > total {
		end = total
	}
	return newestFirst[skip:end], total, nil
}

func readNonBlankLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var out []string
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}
