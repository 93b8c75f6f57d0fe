package model

import (
	"context"
	"errors"
	"testing"
)

func TestMockModel_SubstringMatching(t *testing.T) {
	m := NewMockModel("test")
	m.AddResponse("threat table", `{"rows": []}`)
	m.AddResponse("summary", `{"text": "done"}`)
	m.SetFallback(`{"items": []}`)

	resp, err := m.Generate(context.Background(), Request{Prompt: "Produce the THREAT TABLE now"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != `{"rows": []}` {
		t.Fatalf("case-insensitive match failed: %q", resp.Content)
	}

	resp, _ = m.Generate(context.Background(), Request{Prompt: "something unmatched"})
	if resp.Content != `{"items": []}` {
		t.Fatalf("fallback not used: %q", resp.Content)
	}
	if resp.Usage.TotalTokens == 0 {
		t.Fatal("usage should be estimated")
	}
}

func TestMockModel_FailAndCancellation(t *testing.T) {
	m := NewMockModel("test")
	m.Fail(errors.New("provider down"))
	if _, err := m.Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatal("expected configured failure")
	}

	m2 := NewMockModel("test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m2.Generate(ctx, Request{Prompt: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestMockModel_Info(t *testing.T) {
	m := NewMockModel("my-model")
	info := m.Info()
	if info.Name != "my-model" || info.Provider != "mock" {
		t.Fatalf("unexpected info %+v", info)
	}
}
