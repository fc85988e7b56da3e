// internal/model/track_test.go
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeQuestion(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{
			name: "正常系: single_choice",
			json: `{"kind":"single_choice","payload":{"prompt":"Q1","options":["a","b","c"],"correct_index":1}}`,
		},
		{
			name: "正常系: multi_choice",
			json: `{"kind":"multi_choice","payload":{"prompt":"Q2","options":["a","b","c"],"correct_indexes":[0,2]}}`,
		},
		{
			name: "正常系: true_false",
			json: `{"kind":"true_false","payload":{"prompt":"Q3","answer":true}}`,
		},
		{
			name:    "異常系: 未知のkind",
			json:    `{"kind":"essay","payload":{}}`,
			wantErr: true,
		},
		{
			name:    "異常系: single_choiceで選択肢が1つ",
			json:    `{"kind":"single_choice","payload":{"prompt":"Q","options":["a"],"correct_index":0}}`,
			wantErr: true,
		},
		{
			name:    "異常系: correct_indexが範囲外",
			json:    `{"kind":"single_choice","payload":{"prompt":"Q","options":["a","b"],"correct_index":5}}`,
			wantErr: true,
		},
		{
			name:    "異常系: multi_choiceでcorrect_indexesが空",
			json:    `{"kind":"multi_choice","payload":{"prompt":"Q","options":["a","b"],"correct_indexes":[]}}`,
			wantErr: true,
		},
		{
			name:    "異常系: 壊れたJSON",
			json:    `{"kind":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := DecodeQuestion([]byte(tt.json))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, q)
			} else {
				require.NoError(t, err)
				require.NotNil(t, q)
			}
		})
	}
}

func TestQuestion_Evaluate(t *testing.T) {
	single := mustDecode(t, `{"kind":"single_choice","payload":{"prompt":"Q","options":["a","b","c"],"correct_index":1}}`)
	multi := mustDecode(t, `{"kind":"multi_choice","payload":{"prompt":"Q","options":["a","b","c","d"],"correct_indexes":[1,3]}}`)
	tf := mustDecode(t, `{"kind":"true_false","payload":{"prompt":"Q","answer":true}}`)

	tests := []struct {
		name     string
		q        *Question
		selected []int
		want     bool
		wantErr  bool
	}{
		{name: "正常系: single_choice 正答", q: single, selected: []int{1}, want: true},
		{name: "正常系: single_choice 誤答", q: single, selected: []int{0}, want: false},
		{name: "異常系: single_choice 複数選択", q: single, selected: []int{0, 1}, wantErr: true},
		{name: "異常系: single_choice 範囲外", q: single, selected: []int{9}, wantErr: true},
		{name: "正常系: multi_choice 完全一致で正答", q: multi, selected: []int{3, 1}, want: true},
		{name: "正常系: multi_choice 部分一致は誤答", q: multi, selected: []int{1}, want: false},
		{name: "正常系: multi_choice 余分な選択は誤答", q: multi, selected: []int{1, 3, 0}, want: false},
		{name: "異常系: multi_choice 範囲外", q: multi, selected: []int{1, 9}, wantErr: true},
		{name: "正常系: true_false 正答 (0=true)", q: tf, selected: []int{0}, want: true},
		{name: "正常系: true_false 誤答 (1=false)", q: tf, selected: []int{1}, want: false},
		{name: "異常系: true_false 範囲外", q: tf, selected: []int{2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.q.Evaluate(tt.selected)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeQuestion_RoundTrip(t *testing.T) {
	src := mustDecode(t, `{"kind":"multi_choice","payload":{"prompt":"Q","options":["a","b","c"],"correct_indexes":[0,2]}}`)
	encoded, err := EncodeQuestion(src)
	require.NoError(t, err)

	decoded, err := DecodeQuestion([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, src.Kind, decoded.Kind)
	assert.Equal(t, src.MultiChoice.CorrectIndexes, decoded.MultiChoice.CorrectIndexes)
}

func mustDecode(t *testing.T, json string) *Question {
	t.Helper()
	q, err := DecodeQuestion([]byte(json))
	require.NoError(t, err)
	return q
}
