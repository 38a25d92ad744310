package jsast

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ScriptBlock is the content of one <script> element in a Svelte component.
// Start and End are byte offsets of the content (between the tags) within the
// component source.
type ScriptBlock struct {
	Start    int
	End      int
	Language Language
	Module   bool // context="module"
}

// Content returns the block's content from the component source.
func (b ScriptBlock) Content(src []byte) []byte {
	return src[b.Start:b.End]
}

// ScriptBlocks locates the <script> elements of a Svelte component.
// Start tags are found with the html tokenizer. A block ends at the first
// </script> after its start tag, as in the Svelte compiler; HTML script-data
// escapes such as "<!--" inside the content are not honoured.
func ScriptBlocks(src []byte) ([]ScriptBlock, error) {
	var blocks []ScriptBlock
	for pos := 0; pos < len(src); {
		block, next, ok, err := nextScript(src, pos)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		blocks = append(blocks, block)
		pos = next
	}
	return blocks, nil
}

// nextScript finds the first script element at or after pos. next is the
// offset just past its end tag. ok is false when no complete element remains.
func nextScript(src []byte, pos int) (block ScriptBlock, next int, ok bool, err error) {
	z := html.NewTokenizer(bytes.NewReader(src[pos:]))
	offset := pos
	for {
		tt := z.Next()
		offset += len(z.Raw())

		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return block, 0, false, nil
			}
			return block, 0, false, z.Err()

		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" {
				continue
			}
			block = ScriptBlock{Start: offset, Language: LangJavaScript}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				switch string(key) {
				case "lang", "type":
					v := strings.ToLower(string(val))
					if v == "ts" || v == "typescript" || strings.HasSuffix(v, "/typescript") {
						block.Language = LangTypeScript
					}
				case "context":
					block.Module = string(val) == "module"
				}
			}

			end, after := closingScript(src, offset)
			if end < 0 {
				return block, 0, false, nil
			}
			block.End = end
			return block, after, true, nil
		}
	}
}

// closingScript returns the offset of the first </script> tag at or after
// from, and the offset just past it, or -1 when there is none.
func closingScript(src []byte, from int) (start, after int) {
	const tag = "</script"
	for i := from; ; {
		j := bytes.Index(src[i:], []byte("</"))
		if j < 0 {
			return -1, -1
		}
		i += j
		rest := src[i:]
		if len(rest) > len(tag) && bytes.EqualFold(rest[:len(tag)], []byte(tag)) {
			switch rest[len(tag)] {
			case '>', ' ', '\t', '\n', '\r', '\f', '/':
				gt := bytes.IndexByte(rest, '>')
				if gt < 0 {
					return i, len(src)
				}
				return i, i + gt + 1
			}
		}
		i += 2
	}
}
