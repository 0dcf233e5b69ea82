package domain

import (
	"slices"
	"testing"
)

func TestToggleLikeAddsAndRemoves(t *testing.T) {
	p := &Post{}

	if member := p.ToggleLike("alice"); !member {
		t.Fatal("expected alice to be a member after first toggle")
	}
	if !slices.Contains(p.LikedBy, "alice") {
		t.Fatalf("like set missing alice: %v", p.LikedBy)
	}

	if member := p.ToggleLike("alice"); member {
		t.Fatal("expected alice to be removed after second toggle")
	}
	if len(p.LikedBy) != 0 {
		t.Fatalf("expected empty like set, got %v", p.LikedBy)
	}
}

func TestToggleSetsAreIndependent(t *testing.T) {
	p := &Post{}
	p.ToggleLike("alice")
	p.ToggleRepost("alice")

	if len(p.LikedBy) != 1 || len(p.RepostedBy) != 1 {
		t.Fatalf("expected alice in both sets, got likes=%v reposts=%v", p.LikedBy, p.RepostedBy)
	}

	p.ToggleLike("alice")
	if len(p.LikedBy) != 0 {
		t.Fatalf("expected empty like set, got %v", p.LikedBy)
	}
	if len(p.RepostedBy) != 1 {
		t.Fatalf("un-like must not touch the repost set, got %v", p.RepostedBy)
	}
}

func TestToggleMemberAtMostOnce(t *testing.T) {
	p := &Post{LikedBy: []string{"alice", "bob"}}
	p.ToggleLike("alice")
	p.ToggleLike("alice")

	count := 0
	for _, id := range p.LikedBy {
		if id == "alice" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected alice exactly once, got %d in %v", count, p.LikedBy)
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{name: "dedupes preserving order", in: []string{"go", "rust", "go"}, want: []string{"go", "rust"}},
		{name: "empty list ok", in: nil, want: []string{}},
		{name: "case sensitive", in: []string{"Go", "go"}, want: []string{"Go", "go"}},
		{name: "rejects empty tag", in: []string{"go", ""}, wantErr: true},
		{name: "rejects whitespace tag", in: []string{"  "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTags(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !IsKind(err, KindValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
