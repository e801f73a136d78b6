package summarize

import (
	"strings"
	"testing"
)

// TestNormalize は形式ごとの出力の整形を検証する。
func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		style Style
		raw   string
		want  string
	}{
		{
			name:  "topicos: 記号の揺れが「* 」に揃えられること",
			style: StyleBullets,
			raw:   "- primeiro\n• segundo\n\n1. terceiro\n* quarto",
			want:  "* primeiro\n* segundo\n* terceiro\n* quarto",
		},
		{
			name:  "topicos: 箇条書き外の文も箇条書きになること",
			style: StyleBullets,
			raw:   "Aqui está o resumo:\n* ponto",
			want:  "* Aqui está o resumo:\n* ponto",
		},
		{
			name:  "texto: 箇条書き記号が取り除かれ段落が保たれること",
			style: StylePlain,
			raw:   "* Primeiro parágrafo.\n\n\n- Segundo parágrafo.",
			want:  "Primeiro parágrafo.\n\nSegundo parágrafo.",
		},
		{
			name:  "texto: 強調で始まる行は変更されないこと",
			style: StylePlain,
			raw:   "**Maria** chegou.",
			want:  "**Maria** chegou.",
		},
		{
			name:  "mesclado: 先頭行がTL;DRになり残りが箇条書きになること",
			style: StyleHybrid,
			raw:   "**TL;DR:** reunião marcada.\n\n- ponto um\n- ponto dois",
			want:  "TL;DR: reunião marcada.\n* ponto um\n* ponto dois",
		},
		{
			name:  "mesclado: TL;DRがない場合は補われること",
			style: StyleHybrid,
			raw:   "Resumo curto.\nponto",
			want:  "TL;DR: Resumo curto.\n* ponto",
		},
		{
			name:  "コードフェンスが取り除かれること",
			style: StyleBullets,
			raw:   "```markdown\n- a\n- b\n```",
			want:  "* a\n* b",
		},
		{
			name:  "強調されていない日付が強調されること",
			style: StyleHybrid,
			raw:   "TL;DR: Reunião em 10/03.\n- Prazo 15/04/2026 e **20/05**",
			want:  "TL;DR: Reunião em **10/03**.\n* Prazo **15/04/2026** e **20/05**",
		},
		{
			name:  "URL・年が先の日付・分数は強調されないこと",
			style: StylePlain,
			raw:   "Veja https://ex.com/a/12/10/x em 2024/10/03, metade 1/2 e a razão 3/4.",
			want:  "Veja https://ex.com/a/12/10/x em 2024/10/03, metade 1/2 e a razão 3/4.",
		},
		{
			name:  "範囲外の日付は強調されず1桁の日付は強調されること",
			style: StylePlain,
			raw:   "Placar 45/90 no dia 5/03.",
			want:  "Placar 45/90 no dia **5/03**.",
		},
		{
			name:  "texto: 重なった箇条書き記号がすべて取り除かれること",
			style: StylePlain,
			raw:   "- * item aninhado\n\n1. * item numerado\n• - outro",
			want:  "item aninhado\n\nitem numerado\noutro",
		},
		{
			name:  "topicos: 重なった記号が1つの「* 」になること",
			style: StyleBullets,
			raw:   "- * a\n1) - b",
			want:  "* a\n* b",
		},
		{
			name:  "空白のみの出力は空文字列になること",
			style: StyleHybrid,
			raw:   " \n\n\t",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Normalize(tt.style, tt.raw); got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestNormalizeLineShape は形式ごとの行の形を検証する。
func TestNormalizeLineShape(t *testing.T) {
	t.Parallel()

	raw := "Resumo geral do texto.\n\n- Ponto A com data 10/03.\nPonto B sem marcador.\n• Ponto C.\n- * Ponto D aninhado.\n1. * Ponto E."

	t.Run("topicosはすべての行が「* 」で始まること", func(t *testing.T) {
		t.Parallel()

		for _, line := range strings.Split(Normalize(StyleBullets, raw), "\n") {
			if !strings.HasPrefix(line, "* ") {
				t.Errorf("箇条書きでない行: %q", line)
			}
		}
	})

	t.Run("textoは「* 」で始まる行を含まないこと", func(t *testing.T) {
		t.Parallel()

		for _, line := range strings.Split(Normalize(StylePlain, raw), "\n") {
			if strings.HasPrefix(line, "* ") {
				t.Errorf("箇条書きの行: %q", line)
			}
		}
	})

	t.Run("mescladoは先頭行がTL;DR:で始まり残りが箇条書きであること", func(t *testing.T) {
		t.Parallel()

		lines := strings.Split(Normalize(StyleHybrid, raw), "\n")
		if !strings.HasPrefix(lines[0], "TL;DR:") {
			t.Errorf("先頭行 = %q", lines[0])
		}
		for _, line := range lines[1:] {
			if !strings.HasPrefix(line, "* ") {
				t.Errorf("箇条書きでない行: %q", line)
			}
		}
	})
}
