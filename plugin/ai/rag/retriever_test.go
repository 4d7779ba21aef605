package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora-ai/velora/plugin/ai/vector"
)

// fakeEmbedder maps known strings to fixed vectors so similarity is
// deterministic without a live embedding API.
type fakeEmbedder struct {
	vectors map[string][]float32
	base    []float32
}

func (f *fakeEmbedder) Embedding(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.base, nil
}

func testKB() *KnowledgeBase {
	return &KnowledgeBase{
		Salon: SalonInfo{Name: "Luxe Beauty Salon", Phone: "+1234567890"},
		Services: []Service{
			{Name: "Haircut", Category: "Hair", Description: "Classic cut and style", DurationMinutes: 60, Price: 65},
			{Name: "Balayage", Category: "Color", Description: "Hand-painted highlights", DurationMinutes: 180, Price: 250},
		},
		Stylists: []Stylist{
			{Name: "Sophia", Title: "Senior Stylist", Specialties: []string{"color"}, Availability: []string{"Tuesday"}},
		},
		Policies: map[string]string{
			"cancellation": "24 hours notice required",
			"late_arrival": "15 minute grace period",
		},
		FAQs: []FAQ{
			{Question: "Do you take walk-ins?", Answer: "Yes, subject to availability."},
		},
		Locations: []Location{
			{Name: "Downtown", Address: "1 Main St", Hours: map[string]string{"Monday": "9-7"}},
		},
	}
}

func TestKnowledgeBaseDocuments(t *testing.T) {
	kb := testKB()
	docs := kb.Documents()

	// 2 services + 1 stylist + 2 policies + 1 faq + 1 location + salon info.
	require.Len(t, docs, 8)

	sources := map[string]int{}
	for _, doc := range docs {
		sources[doc.Source]++
		assert.NotEmpty(t, doc.ID)
		assert.NotEmpty(t, doc.Content)
	}
	assert.Equal(t, 2, sources["services"])
	assert.Equal(t, 1, sources["stylists"])
	assert.Equal(t, 2, sources["policies"])
	assert.Equal(t, 1, sources["faqs"])
	assert.Equal(t, 1, sources["locations"])
	assert.Equal(t, 1, sources["salon_info"])

	// Policy documents come out in sorted key order for stable IDs.
	assert.Contains(t, docs[3].Content, "Cancellation")
	assert.Contains(t, docs[4].Content, "Late Arrival")
}

func TestServiceByName(t *testing.T) {
	kb := testKB()

	svc, ok := kb.ServiceByName("haircut")
	require.True(t, ok)
	assert.Equal(t, 60, svc.DurationMinutes)

	_, ok = kb.ServiceByName("facelift")
	assert.False(t, ok)
}

func TestRetrieverQuery(t *testing.T) {
	kb := testKB()
	store := vector.NewMockStore()
	embedder := &fakeEmbedder{
		base: []float32{0, 1, 0},
		vectors: map[string][]float32{
			"how much is a haircut": {1, 0, 0},
		},
	}
	retriever := NewRetriever(embedder, store, kb)

	ctx := context.Background()
	require.NoError(t, retriever.Index(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, count)

	// Give the haircut document the query's vector so it ranks first.
	docs := kb.Documents()
	require.NoError(t, store.Upsert(ctx, docs[0], []float32{1, 0, 0}))

	snippets, err := retriever.Query(ctx, "how much is a haircut", 3)
	require.NoError(t, err)
	require.Len(t, snippets, 3)
	assert.Contains(t, snippets[0].Content, "Haircut")
	assert.Equal(t, "services", snippets[0].Source)
	assert.InDelta(t, 1.0, snippets[0].RelevanceScore, 0.001)
	assert.GreaterOrEqual(t, snippets[0].RelevanceScore, snippets[1].RelevanceScore)
}

func TestRetrieverQueryDefaultTopK(t *testing.T) {
	kb := testKB()
	store := vector.NewMockStore()
	retriever := NewRetriever(&fakeEmbedder{base: []float32{1, 1, 1}}, store, kb)

	ctx := context.Background()
	require.NoError(t, retriever.Index(ctx))

	snippets, err := retriever.Query(ctx, "anything", 0)
	require.NoError(t, err)
	assert.Len(t, snippets, DefaultTopK)
}

func TestRetrieverQueryEmptyIndex(t *testing.T) {
	retriever := NewRetriever(&fakeEmbedder{base: []float32{1}}, vector.NewMockStore(), testKB())

	snippets, err := retriever.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, snippets)
}
