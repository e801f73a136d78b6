package summarize

import "strings"

// Style は要約の出力形式。
type Style int

const (
	// StyleHybrid は "TL;DR:" の1行と4〜7個の箇条書き（mesclado）。既定値。
	StyleHybrid Style = iota
	// StylePlain は短い段落のみ（texto）。
	StylePlain
	// StyleBullets は4〜8個の箇条書きのみ（topicos）。
	StyleBullets
)

// ParseStyle はリクエストのstyle値を解釈する。未指定や未知の値はStyleHybridになる。
func ParseStyle(s string) Style {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "texto":
		return StylePlain
	case "topicos", "tópicos":
		return StyleBullets
	case "mesclado":
		return StyleHybrid
	default:
		return StyleHybrid
	}
}

// String はワイヤー上の名前を返す。
func (s Style) String() string {
	switch s {
	case StylePlain:
		return "texto"
	case StyleBullets:
		return "topicos"
	default:
		return "mesclado"
	}
}
