package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommend_Tiers(t *testing.T) {
	cases := []struct {
		score int
		want  Recommendation
	}{
		{0, RecommendNoAction},
		{29, RecommendNoAction},
		{30, RecommendWatch},
		{49, RecommendWatch},
		{50, RecommendRateLimit},
		{69, RecommendRateLimit},
		{70, RecommendShadowRestrict},
		{89, RecommendShadowRestrict},
		{90, RecommendPermanentBan},
		{100, RecommendPermanentBan},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Recommend(tc.score), "score %d", tc.score)
	}
}

func TestSuggest_TopTierOffersBothEscalations(t *testing.T) {
	got := Suggest(95, true, false)

	actions := make([]Action, 0, len(got))
	for _, s := range got {
		actions = append(actions, s.Action)
	}
	assert.Contains(t, actions, ActionTemporaryBlock)
	assert.Contains(t, actions, ActionPermanentBan)
}

func TestSuggest_LowScoreSuggestsNothing(t *testing.T) {
	got := Suggest(20, true, false)

	require.Len(t, got, 1)
	assert.Equal(t, ActionNone, got[0].Action)
}

func TestSuggest_MidTierAddsEmailRequirementWhenMissing(t *testing.T) {
	withEmail := Suggest(55, true, false)
	withoutEmail := Suggest(55, false, false)

	assert.Len(t, withEmail, 1)
	require.Len(t, withoutEmail, 2)
	assert.Equal(t, ActionRequireEmail, withoutEmail[1].Action)
}

func TestSuggest_SharedRegisteredIPAppendsMergeReview(t *testing.T) {
	got := Suggest(20, true, true)

	require.Len(t, got, 2)
	assert.Equal(t, ActionMergeReview, got[1].Action)
}
