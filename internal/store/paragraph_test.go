package store

import (
	"context"
	"testing"
)

func TestParagraphCountAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.CountParagraphs(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}

	seedParagraphs(t, s,
		Paragraph{PageName: "Rome", SectionName: "History", TextCleaned: "a", WordCount: 1},
		Paragraph{PageName: "Rome", SectionName: "Geography", TextCleaned: "b", WithinPageOrder: 1, IsBad: true},
	)

	n, err = s.CountParagraphs(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}

	p, err := s.GetParagraph(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p == nil || p.SectionName != "Geography" || !p.IsBad || p.Processed != Unprocessed {
		t.Fatalf("unexpected paragraph: %+v", p)
	}

	missing, err := s.GetParagraph(ctx, 99)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing paragraph, got %+v", missing)
	}
}

func TestNextUnprocessedParagraph(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedParagraphs(t, s,
		Paragraph{PageName: "A"},
		Paragraph{PageName: "B"},
		Paragraph{PageName: "C"},
	)

	p, err := s.NextUnprocessedParagraph(ctx, false, nil)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if p == nil || p.ID != 1 {
		t.Fatalf("sequential pick = %+v, want id 1", p)
	}

	order, err := s.NextProcessedOrder(ctx)
	if err != nil {
		t.Fatalf("next order: %v", err)
	}
	if order != 0 {
		t.Fatalf("first order = %d, want 0", order)
	}
	if err := s.MarkProcessed(ctx, 1, order); err != nil {
		t.Fatalf("mark: %v", err)
	}

	order, err = s.NextProcessedOrder(ctx)
	if err != nil {
		t.Fatalf("next order: %v", err)
	}
	if order != 1 {
		t.Fatalf("second order = %d, want 1", order)
	}

	// Paragraph 2 is excluded, so 3 is the only candidate.
	p, err = s.NextUnprocessedParagraph(ctx, true, []int{2})
	if err != nil {
		t.Fatalf("next with exclude: %v", err)
	}
	if p == nil || p.ID != 3 {
		t.Fatalf("pick with exclude = %+v, want id 3", p)
	}

	p, err = s.NextUnprocessedParagraph(ctx, true, []int{2, 3})
	if err != nil {
		t.Fatalf("next exhausted: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil when everything is processed or excluded, got %+v", p)
	}

	left, err := s.CountUnprocessedParagraphs(ctx)
	if err != nil {
		t.Fatalf("count unprocessed: %v", err)
	}
	if left != 2 {
		t.Fatalf("unprocessed = %d, want 2", left)
	}

	if err := s.MarkProcessed(ctx, 42, 5); err == nil {
		t.Fatal("expected error marking a missing paragraph")
	}
}

func TestPageParagraphs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedParagraphs(t, s,
		Paragraph{PageName: "Zebra", WithinPageOrder: 0},
		Paragraph{PageName: "Apple", WithinPageOrder: 1, TextCleaned: "second"},
		Paragraph{PageName: "Apple", WithinPageOrder: 0, TextCleaned: "first"},
	)

	page, err := s.PageParagraphs(ctx, 0)
	if err != nil {
		t.Fatalf("page 0: %v", err)
	}
	if len(page) != 2 || page[0].TextCleaned != "first" || page[1].TextCleaned != "second" {
		t.Fatalf("page 0 = %+v", page)
	}

	page, err = s.PageParagraphs(ctx, 1)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page) != 1 || page[0].PageName != "Zebra" {
		t.Fatalf("page 1 = %+v", page)
	}

	page, err = s.PageParagraphs(ctx, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if page != nil {
		t.Fatalf("expected nil past the last page, got %+v", page)
	}

	page, err = s.PageParagraphs(ctx, -1)
	if err != nil {
		t.Fatalf("random page: %v", err)
	}
	if len(page) == 0 {
		t.Fatal("random page returned nothing")
	}
	for _, p := range page[1:] {
		if p.PageName != page[0].PageName {
			t.Fatalf("random page mixes pages: %+v", page)
		}
	}
}

func TestRandomParagraphs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedParagraphs(t, s, Paragraph{PageName: "A"}, Paragraph{PageName: "B"}, Paragraph{PageName: "C"})

	got, err := s.RandomParagraphs(ctx, 2)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	got, err = s.RandomParagraphs(ctx, 10)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
}

func TestInsertParagraphsBatches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	many := make([]Paragraph, insertBatchSize+3)
	for i := range many {
		many[i] = Paragraph{PageName: "P", WithinPageOrder: i, Processed: Unprocessed}
	}
	if err := s.InsertParagraphs(ctx, many); err != nil {
		t.Fatalf("insert: %v", err)
	}
	n, err := s.CountParagraphs(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != len(many) {
		t.Fatalf("count = %d, want %d", n, len(many))
	}
}
