package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantTags   []string
		wantScores map[string]float64
	}{
		{
			name:       "top level tags and scores",
			payload:    `{"tags":["1girl","rating:safe",{"label":"nude"},{"name":"solo"},{"tag":"bikini"},{}],"scores":{"porn":0.7,"sexy":"0.1"}}`,
			wantTags:   []string{"1girl", "nude", "solo", "bikini"},
			wantScores: map[string]float64{"porn": 0.7, "sexy": 0.1},
		},
		{
			name:       "score object",
			payload:    `{"tags":[],"score":{"hentai":0.2}}`,
			wantTags:   []string{},
			wantScores: map[string]float64{"hentai": 0.2},
		},
		{
			name:       "nested modules",
			payload:    `{"modules":{"deepdanbooru_tags":{"tags":["Nipples"]},"nsfw_scanner":{"scores":{"porn":0.9}}}}`,
			wantTags:   []string{"Nipples"},
			wantScores: map[string]float64{"porn": 0.9},
		},
		{
			name:       "flattened modules",
			payload:    `{"modules.tagging":{"tags":[{"label":"cat"}]},"modules.nsfw_scanner":{"porn":"0.25","hentai":0.05,"label":"x"}}`,
			wantTags:   []string{"cat"},
			wantScores: map[string]float64{"porn": 0.25, "hentai": 0.05},
		},
		{
			name:       "image storage metadata",
			payload:    `{"modules":{"image_storage":{"metadata":{"tags":["a","b"]}}}}`,
			wantTags:   []string{"a", "b"},
			wantScores: map[string]float64{},
		},
		{
			name:       "danbooru tags preferred in metadata",
			payload:    `{"modules":{"image_storage":{"metadata":{"danbooru_tags":["x"],"tags":["y"]}}}}`,
			wantTags:   []string{"x"},
			wantScores: map[string]float64{},
		},
		{
			name:       "nothing",
			payload:    `{}`,
			wantTags:   []string{},
			wantScores: map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.wantTags, got.Tags)
			assert.Equal(t, tt.wantScores, got.Scores)
		})
	}
}

func TestNormalizeInvalid(t *testing.T) {
	for _, payload := range []string{"not json", `["array"]`, `"str"`} {
		_, err := Normalize([]byte(payload))
		require.ErrorIs(t, err, ErrInvalidPayload, payload)
	}
}
