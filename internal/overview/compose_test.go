package overview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-frozen/defi-overview/internal/llama"
)

func TestNextEventDescription(t *testing.T) {
	next := testNow.Add(3 * 24 * time.Hour).Unix()

	t.Run("token amount without market data", func(t *testing.T) {
		events := []llama.EmissionEvent{{Timestamp: next, NoOfTokens: []float64{1000}}}
		got := nextEventDescription(events, nil, nil, "tokens", testNow)
		require.NotNil(t, got)
		assert.Equal(t, "1,000 tokens will be unlocked 3 days from now", *got)
	})

	t.Run("range events in the same batch are summed", func(t *testing.T) {
		events := []llama.EmissionEvent{
			{Timestamp: next, NoOfTokens: []float64{100, 600}},
			{Timestamp: next, NoOfTokens: []float64{500}},
		}
		got := nextEventDescription(events, nil, nil, "UNI", testNow)
		require.NotNil(t, got)
		assert.Equal(t, "1,000 UNI will be unlocked 3 days from now", *got)
	})

	t.Run("nothing upcoming", func(t *testing.T) {
		events := []llama.EmissionEvent{{Timestamp: testNow.Unix() - 10, NoOfTokens: []float64{5}}}
		assert.Nil(t, nextEventDescription(events, nil, nil, "UNI", testNow))
		assert.Nil(t, nextEventDescription(nil, nil, nil, "UNI", testNow))
	})

	t.Run("zero unlock", func(t *testing.T) {
		events := []llama.EmissionEvent{{Timestamp: next, NoOfTokens: []float64{0}}}
		assert.Nil(t, nextEventDescription(events, ptr(1), ptr(1), "UNI", testNow))
	})
}

func TestHelperText(t *testing.T) {
	assert.Nil(t, helperText(nil, "fees", "Fees"))

	one := []llama.DimensionProtocol{{Name: "Aave", Methodology: map[string]any{"Fees": "Interest paid by borrowers"}}}
	got := helperText(one, "fees", "Fees")
	require.NotNil(t, got)
	assert.Equal(t, "Interest paid by borrowers", *got)

	noText := []llama.DimensionProtocol{{Name: "Aave", Methodology: map[string]any{"Fees": 1}}}
	assert.Nil(t, helperText(noText, "fees", "Fees"))
}
