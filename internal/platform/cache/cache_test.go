package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/0", false},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx := t.Context()
	_, err := New(ctx, "redis://localhost:59999")
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	url := os.Getenv("ARENA_TEST_CACHE_URL")
	if testing.Short() || url == "" {
		t.Skip("set ARENA_TEST_CACHE_URL to run against a live Redis")
	}

	ctx := t.Context()
	c, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	key := "arena:test:" + t.Name()
	t.Cleanup(func() { _ = c.Delete(context.Background(), key) })

	var got payload
	if found, err := c.GetJSON(ctx, key, &got); err != nil || found {
		t.Fatalf("GetJSON() before set = %v, %v; want miss", found, err)
	}

	if err := c.SetJSON(ctx, key, payload{Name: "a", Count: 2}, time.Minute); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	found, err := c.GetJSON(ctx, key, &got)
	if err != nil || !found {
		t.Fatalf("GetJSON() = %v, %v; want hit", found, err)
	}
	if got.Name != "a" || got.Count != 2 {
		t.Errorf("GetJSON() = %+v", got)
	}
}
