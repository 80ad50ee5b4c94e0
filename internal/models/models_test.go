package models_test

import (
	"encoding/json"
	"testing"

	"github.com/0x5457/embedcheck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHitUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  models.Hit
	}{
		{"rest naming", `{"index": 2, "score": 0.5}`, models.Hit{CorpusID: 2, Score: 0.5}},
		{"corpus_id naming", `{"corpus_id": 1, "score": 0.25}`, models.Hit{CorpusID: 1, Score: 0.25}},
		{"string encoded int64", `{"index": "3", "score": 0.75}`, models.Hit{CorpusID: 3, Score: 0.75}},
		{"proto3 default index", `{"score": 0.9}`, models.Hit{CorpusID: 0, Score: 0.9}},
		{"null index uses corpus_id", `{"index": null, "corpus_id": 2, "score": 0.5}`, models.Hit{CorpusID: 2, Score: 0.5}},
		{"null index alone", `{"index": null, "score": 0.4}`, models.Hit{CorpusID: 0, Score: 0.4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h models.Hit
			require.NoError(t, json.Unmarshal([]byte(tt.input), &h))
			assert.Equal(t, tt.want, h)
		})
	}
}

func TestHitUnmarshalRejectsGarbage(t *testing.T) {
	var h models.Hit
	assert.Error(t, json.Unmarshal([]byte(`{"index": "x", "score": 1}`), &h))
}

func TestDocumentKeepsKeyOrder(t *testing.T) {
	raw := `{"title":"first title","text":"first sentence","meta":{"foo":"bar","i":999}}`
	var doc models.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, []string{"title", "text", "meta"}, doc.Keys())
	assert.Equal(t, "first sentence", doc.Text())

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
	assert.Equal(t, raw, string(out))
}

func TestDocumentTextFallsBackToFirstString(t *testing.T) {
	var doc models.Document
	require.NoError(t, json.Unmarshal([]byte(`{"n": 1, "body": "hello", "x": "later"}`), &doc))
	assert.Equal(t, "hello", doc.Text())
}

func TestDocumentSetReplacesInPlace(t *testing.T) {
	doc := models.NewDocument("a")
	require.NoError(t, doc.Set("title", "t"))
	require.NoError(t, doc.Set("text", "b"))
	assert.Equal(t, []string{"text", "title"}, doc.Keys())
	assert.Equal(t, "b", doc.Text())
}

func TestDocumentRejectsNonObject(t *testing.T) {
	var doc models.Document
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &doc))
}

func TestReportPassed(t *testing.T) {
	r := &models.Report{Results: []models.TaskResult{{Passed: true}, {Passed: false}}}
	assert.False(t, r.Passed())
	assert.Equal(t, 1, r.Failed())
}

func TestDecodeDocuments(t *testing.T) {
	docs, err := models.DecodeDocuments([]byte(`["plain", {"title": "t", "text": "body"}]`))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, []string{"plain", "body"}, models.DocumentTexts(docs))
	assert.Equal(t, []string{"title", "text"}, docs[1].Keys())

	_, err = models.DecodeDocuments([]byte(`{"text": "not an array"}`))
	assert.Error(t, err)

	_, err = models.DecodeDocuments([]byte(`[42]`))
	assert.Error(t, err)
}
