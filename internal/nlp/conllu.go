package nlp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadCoNLLU decodes sentences in CoNLL-U format, the output of UDPipe and
// Stanza. Empty nodes (IDs like "5.1") are ignored; multiword ranges
// ("3-4 du") are kept for surface rendering.
func ReadCoNLLU(r io.Reader) ([]Sentence, error) {
	var (
		sentences []Sentence
		cur       Sentence
		pending   []pendingMultiword
		lineNo    int
	)

	flush := func() {
		if len(cur.Tokens) == 0 {
			cur, pending = Sentence{}, nil
			return
		}
		for _, p := range pending {
			cur.AddMultiword(p.first, p.last, p.form, p.noSpaceAfter)
		}
		if cur.Text == "" {
			cur.Text = cur.Join(cur.Tokens)
		}
		sentences = append(sentences, cur)
		cur, pending = Sentence{}, nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")

		switch {
		case strings.TrimSpace(line) == "":
			flush()
			continue
		case strings.HasPrefix(line, "#"):
			if text, ok := strings.CutPrefix(line, "# text ="); ok {
				cur.Text = strings.TrimSpace(text)
			}
			continue
		}

		cols := strings.Split(line, "\t")
		if len(cols) != 10 {
			return nil, fmt.Errorf("conllu line %d: expected 10 columns, got %d", lineNo, len(cols))
		}

		id := cols[0]
		if strings.Contains(id, ".") {
			continue
		}
		if from, to, ok := strings.Cut(id, "-"); ok {
			first, err1 := strconv.Atoi(from)
			last, err2 := strconv.Atoi(to)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("conllu line %d: bad range %q", lineNo, id)
			}
			pending = append(pending, pendingMultiword{
				first:        first - 1,
				last:         last - 1,
				form:         cols[1],
				noSpaceAfter: miscNoSpace(cols[9]),
			})
			continue
		}

		n, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("conllu line %d: bad id %q", lineNo, id)
		}
		head, err := strconv.Atoi(cols[6])
		if err != nil {
			return nil, fmt.Errorf("conllu line %d: bad head %q", lineNo, cols[6])
		}
		if n != len(cur.Tokens)+1 {
			return nil, fmt.Errorf("conllu line %d: token id %d out of sequence", lineNo, n)
		}

		cur.Tokens = append(cur.Tokens, Token{
			Index:        n - 1,
			Head:         head - 1,
			Text:         cols[1],
			Lemma:        blankIfUnderscore(cols[2]),
			POS:          blankIfUnderscore(cols[3]),
			Dep:          blankIfUnderscore(cols[7]),
			Feats:        parseFeats(cols[5]),
			NoSpaceAfter: miscNoSpace(cols[9]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading conllu: %w", err)
	}
	flush()

	return sentences, nil
}

type pendingMultiword struct {
	first, last  int
	form         string
	noSpaceAfter bool
}

func parseFeats(col string) map[string]string {
	if col == "_" || col == "" {
		return nil
	}
	feats := make(map[string]string)
	for _, kv := range strings.Split(col, "|") {
		if k, v, ok := strings.Cut(kv, "="); ok {
			feats[k] = v
		}
	}
	return feats
}

func miscNoSpace(col string) bool {
	for _, item := range strings.Split(col, "|") {
		if item == "SpaceAfter=No" {
			return true
		}
	}
	return false
}

func blankIfUnderscore(s string) string {
	if s == "_" {
		return ""
	}
	return s
}
