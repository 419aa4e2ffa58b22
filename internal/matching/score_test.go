package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestBlendScores 验证加权混合公式和取整顺序
func TestBlendScores(t *testing.T) {
	testCases := []struct {
		name            string
		vectorScore     int
		skillRatio      float64
		experienceRatio float64
		expected        int
	}{
		{"常规输入", 80, 0.70, 0.40, 72},
		{"满分输入得95分", 100, 1.0, 1.0, 95},
		{"全零输入", 0, 0, 0, 0},
		{"只有向量分", 100, 0, 0, 65},
		{"只有技能分", 0, 1.0, 0, 25},
		{"只有经验分", 0, 0, 1.0, 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := BlendScores(tc.vectorScore, tc.skillRatio, tc.experienceRatio)
			assert.Equal(t, tc.expected, got)
		})
	}
}

// TestBlendScoresRange 验证任意合法输入的结果都落在[0,95]内
func TestBlendScoresRange(t *testing.T) {
	for v := 0; v <= 100; v += 10 {
		for _, r := range []float64{0, 0.25, 0.5, 0.75, 1.0} {
			got := BlendScores(v, r, r)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 95)
		}
	}
}

func TestRatioToPercent(t *testing.T) {
	assert.Equal(t, 70, RatioToPercent(0.70))
	assert.Equal(t, 0, RatioToPercent(0))
	assert.Equal(t, 100, RatioToPercent(1.0))
	assert.Equal(t, 67, RatioToPercent(0.666))
	assert.Equal(t, 33, RatioToPercent(0.334))
}

func TestVectorScoreToPercent(t *testing.T) {
	assert.Equal(t, 87, VectorScoreToPercent(0.87))
	assert.Equal(t, 100, VectorScoreToPercent(1.0))
	assert.Equal(t, 0, VectorScoreToPercent(0))
	assert.Equal(t, 86, VectorScoreToPercent(0.856))
}
