package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karan/inbox-agent/internal/llm"
)

const sampleTSV = `level	page_num	block_num	par_num	line_num	word_num	left	top	width	height	conf	text
1	1	0	0	0	0	0	0	800	600	-1
2	1	1	0	0	0	10	10	780	80	-1
5	1	1	1	1	1	10	10	120	30	96.5	Backend
5	1	1	1	1	2	140	10	120	30	91.5	Engineer
4	1	1	1	2	0	10	50	780	30	-1
5	1	1	1	2	1	10	50	80	30	88.0	Acme
5	1	1	1	2	2	100	50	80	30	84.0	Corp`

func TestParseTSV(t *testing.T) {
	t.Run("words joined, markers break lines", func(t *testing.T) {
		text, conf := ParseTSV(sampleTSV)
		assert.Equal(t, "Backend Engineer\nAcme Corp", text)
		assert.InDelta(t, 0.90, conf, 1e-9) // mean of 96.5, 91.5, 88, 84
	})

	t.Run("empty output", func(t *testing.T) {
		text, conf := ParseTSV("level\tpage_num\n")
		assert.Empty(t, text)
		assert.Zero(t, conf)
	})

	t.Run("low confidence surfaces", func(t *testing.T) {
		tsv := "h\n5\t1\t1\t1\t1\t1\t0\t0\t0\t0\t22.0\tgarbled"
		_, conf := ParseTSV(tsv)
		assert.InDelta(t, 0.22, conf, 1e-9)
	})
}

type stubClient struct {
	response string
	called   bool
}

func (s *stubClient) GenerateText(ctx context.Context, prompt string, tier llm.ModelTier) (string, llm.Usage, error) {
	s.called = true
	return s.response, llm.Usage{TotalTokens: 30}, nil
}

func (s *stubClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, llm.Usage, error) {
	return s.GenerateText(ctx, prompt, tier)
}

func (s *stubClient) Close() error { return nil }

func TestCleanText(t *testing.T) {
	ctx := context.Background()

	t.Run("cleanup pass trims and returns", func(t *testing.T) {
		client := &stubClient{response: "  Backend Engineer\nAcme Corp  "}
		text, usage, err := CleanText(ctx, client, "Backend Engneer Acme C0rp")
		require.NoError(t, err)
		assert.Equal(t, "Backend Engineer\nAcme Corp", text)
		assert.Equal(t, 30, usage.TotalTokens)
	})

	t.Run("empty input skips the call", func(t *testing.T) {
		client := &stubClient{}
		text, usage, err := CleanText(ctx, client, "   ")
		require.NoError(t, err)
		assert.Empty(t, text)
		assert.Zero(t, usage.TotalTokens)
		assert.False(t, client.called)
	})
}
