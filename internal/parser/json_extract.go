package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON 从模型回复中取出JSON对象文本：先依次在 ``` 代码块里找，再在全文里找。
// 返回第一个括号配平且能解析的 {...}；都不能解析时返回第一个配平的片段，交给调用方报错。
// 找不到时返回空串
func ExtractJSON(text string) string {
	var fallback string
	for _, m := range fencedBlockPattern.FindAllStringSubmatch(text, -1) {
		valid, first := scanObjects(m[1])
		if valid != "" {
			return valid
		}
		if fallback == "" {
			fallback = first
		}
	}

	valid, first := scanObjects(text)
	if valid != "" {
		return valid
	}
	if fallback == "" {
		fallback = first
	}
	return fallback
}

// scanObjects 从每个 { 起尝试配平，返回第一个合法JSON对象以及第一个配平的片段
func scanObjects(text string) (valid, first string) {
	for start := strings.IndexByte(text, '{'); start != -1; {
		if end := matchBrace(text, start); end != -1 {
			candidate := strings.TrimSpace(text[start : end+1])
			if json.Valid([]byte(candidate)) {
				return candidate, first
			}
			if first == "" {
				first = candidate
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", first
}

// matchBrace 返回与 text[start] 处 { 配平的 } 下标，跳过字符串字面量里的括号
func matchBrace(text string, start int) int {
	level := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return i
			}
		}
	}
	return -1
}
