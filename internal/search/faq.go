package search

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// Entry is one answerable unit of the FAQ. Question is the nearest
// heading above the answer and may be empty.
type Entry struct {
	Question string
	Answer   string
}

var (
	headingRE  = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*$`)
	listMarkRE = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+`)
)

// ParseFAQ reads a Markdown knowledge base. Each "##"-or-deeper heading
// starts a question whose answer is the text up to the next heading.
// Paragraphs outside any question become entries of their own. Table rows
// are flattened into one entry per row and the separator row is dropped.
func ParseFAQ(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		out      []Entry
		question string
		lines    []string
	)
	flush := func() {
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		lines = lines[:0]
		if text == "" {
			return
		}
		if question != "" && len(out) > 0 && out[len(out)-1].Question == question && !isTableFact(out[len(out)-1]) {
			out[len(out)-1].Answer += "\n\n" + text
			return
		}
		out = append(out, Entry{Question: question, Answer: text})
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			flush()
		case headingRE.MatchString(line):
			flush()
			m := headingRE.FindStringSubmatch(line)
			if len(m[1]) == 1 {
				question = ""
			} else {
				question = m[2]
			}
		case strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|"):
			flush()
			if fact := tableFact(line); fact != "" {
				out = append(out, Entry{Question: question, Answer: tableMark + fact})
			}
		default:
			lines = append(lines, normalizeWhitespace(listMarkRE.ReplaceAllString(line, "• ")))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()

	for i := range out {
		out[i].Answer = strings.TrimPrefix(out[i].Answer, tableMark)
	}
	return out, nil
}

// tableMark tags row entries while parsing so that later paragraphs are
// not merged into them.
const tableMark = "\x00"

func isTableFact(e Entry) bool { return strings.HasPrefix(e.Answer, tableMark) }

func tableFact(line string) string {
	cells := strings.Split(strings.Trim(line, "|"), "|")
	kept := make([]string, 0, len(cells))
	separator := true
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if strings.Trim(c, ":- ") != "" {
			separator = false
		}
		if c != "" {
			kept = append(kept, c)
		}
	}
	if separator {
		return ""
	}
	return strings.Join(kept, " ")
}
