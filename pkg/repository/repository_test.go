// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/invowk/depload/internal/issue"
)

func TestNewSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://repo.example.com/maven", "https://repo.example.com/maven/", false},
		{"https://repo.example.com/maven/", "https://repo.example.com/maven/", false},
		{"file:///srv/m2", "file:///srv/m2/", false},
		{"", "", true},
		{"ftp://repo.example.com/", "", true},
		{"https:///nohost", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := NewSource(tt.in, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSource(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, issue.ErrConfiguration) {
					t.Errorf("error %v should be a configuration error", err)
				}
				return
			}
			if got.BaseURL != tt.want {
				t.Errorf("BaseURL = %q, want %q", got.BaseURL, tt.want)
			}
		})
	}
}

func TestRegistry_Order(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Add(Source{BaseURL: "https://r2/", Priority: 10})
	r.Add(Source{BaseURL: "https://r1/", Priority: 0})
	r.Add(Source{BaseURL: "https://r3/", Priority: 10})
	if r.Add(Source{BaseURL: "https://r1/", Priority: 99}) {
		t.Error("duplicate URL should not be added")
	}

	want := []string{"https://r1/", "https://r2/", "https://r3/"}
	if got := r.URLs(); !slices.Equal(got, want) {
		t.Errorf("URLs() = %v, want %v", got, want)
	}
}

func TestRegistry_RequireNonEmpty(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	err := r.RequireNonEmpty()
	if !errors.Is(err, issue.ErrConfiguration) {
		t.Fatalf("RequireNonEmpty() on empty registry = %v, want ErrConfiguration", err)
	}

	if err := r.AddURL("https://repo.example.com/", 0); err != nil {
		t.Fatalf("AddURL() error = %v", err)
	}
	if err := r.RequireNonEmpty(); err != nil {
		t.Errorf("RequireNonEmpty() = %v, want nil", err)
	}

	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len() after Reset = %d", r.Len())
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Add(Source{BaseURL: "https://r/" + string(rune('a'+i)) + "/", Priority: i})
		}()
		go func() {
			defer wg.Done()
			_ = r.URLs()
		}()
	}
	wg.Wait()

	if r.Len() != 16 {
		t.Errorf("Len() = %d, want 16", r.Len())
	}
}
