package summarize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// bulletPattern は行頭に連続する箇条書き記号や番号（"- * " なども含む）に一致する。
	bulletPattern = regexp.MustCompile(`^(?:(?:[*\-•–+]|\d{1,2}[.)])\s+)+`)
	// tldrPattern は大文字小文字の揺れを含むTL;DRの見出しに一致する。
	tldrPattern = regexp.MustCompile(`(?i)^\**tl;?dr\**\s*:?\**\s*`)
	// datePattern は dd/mm、dd/mm/yyyy 形式の日付の候補に一致する。
	// 前後の文字と日・月の範囲はisDateで確認する。
	datePattern = regexp.MustCompile(`\d{1,2}/\d{1,2}(?:/\d{4}|/\d{2})?`)
)

const bullet = "* "

// Normalize はバックエンドの出力を形式の規則に合わせて整える。
//   - texto: 箇条書き記号を取り除き、段落の間の空行を1行にまとめる
//   - topicos: 空行を除き、すべての行を "* " で始める
//   - mesclado: 先頭行を "TL;DR:" で始め、残りの行を "* " で始める
//
// どの形式でも、強調されていない日付は **で囲む。内容がなければ空文字列を返す。
func Normalize(style Style, raw string) string {
	lines := splitLines(stripCodeFence(raw))

	var out []string
	switch style {
	case StylePlain:
		blank := false
		for _, line := range lines {
			if line == "" {
				blank = len(out) > 0
				continue
			}
			if blank {
				out = append(out, "")
				blank = false
			}
			out = append(out, bulletPattern.ReplaceAllString(line, ""))
		}
	case StyleBullets:
		for _, line := range lines {
			if line == "" {
				continue
			}
			out = append(out, asBullet(line))
		}
	default:
		for _, line := range lines {
			if line == "" {
				continue
			}
			if len(out) == 0 {
				body := strings.TrimSpace(tldrPattern.ReplaceAllString(bulletPattern.ReplaceAllString(line, ""), ""))
				if body == "" {
					continue
				}
				out = append(out, "TL;DR: "+body)
				continue
			}
			out = append(out, asBullet(line))
		}
	}

	return emphasizeDates(strings.Join(out, "\n"))
}

// splitLines は行ごとに分割し、前後の空白を取り除く。
func splitLines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		lines = append(lines, strings.TrimSpace(line))
	}
	return lines
}

// stripCodeFence は出力全体を囲むコードフェンスを取り除く。
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.Contains(s[:i], " ") {
		// 言語指定（```markdown など）を捨てる
		s = s[i+1:]
	}
	return s
}

func asBullet(line string) string {
	body := strings.TrimSpace(bulletPattern.ReplaceAllString(line, ""))
	return bullet + body
}

// emphasizeDates は **で囲まれていない日付を強調する。
func emphasizeDates(s string) string {
	matches := datePattern.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		b.WriteString(s[last:start])
		if !isDate(s, start, end) || emphasized(s, start, end) {
			b.WriteString(s[start:end])
		} else {
			b.WriteString("**" + s[start:end] + "**")
		}
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

// emphasized は s[start:end] が既に強調の内側にあるかを返す。
// 同じ行で直前に閉じられていない "**" があれば強調の内側とみなす。
func emphasized(s string, start, end int) bool {
	lineStart := strings.LastIndexByte(s[:start], '\n') + 1
	if strings.Count(s[lineStart:start], "**")%2 == 1 {
		return true
	}
	return strings.HasPrefix(s[end:], "**") && strings.HasSuffix(s[:start], "**")
}

// isDate は s[start:end] が単独の日付かを返す。URLのパス、年が先の日付、
// 分数（"1/2" のように日と月がどちらも1桁）は日付とみなさない。
func isDate(s string, start, end int) bool {
	if start > 0 && isDateNeighbor(s[start-1]) {
		return false
	}
	if end < len(s) && isDateNeighbor(s[end]) {
		return false
	}

	parts := strings.SplitN(s[start:end], "/", 3)
	if len(parts[0])+len(parts[1]) < 3 {
		return false
	}
	day, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	return day >= 1 && day <= 31 && month >= 1 && month <= 12
}

// isDateNeighbor は日付に隣接してはならない文字かを返す。
func isDateNeighbor(c byte) bool {
	return c == '/' || c == '_' || (c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
