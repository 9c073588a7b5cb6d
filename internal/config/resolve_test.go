package config_test

import (
	"reflect"
	"testing"

	"splicer/internal/config"
)

func storeFrom(t *testing.T, document string) *config.Store {
	t.Helper()
	store := config.NewStore()
	config.Extend(store, document, t.Name(), nil)
	return store
}

func TestResolveExtensionFolding(t *testing.T) {
	tests := []struct {
		name     string
		document string
		want     string
	}{
		{name: "right extension", document: "K = A\nK += B\n", want: "AB"},
		{name: "left extension", document: "K = A\nK <+= B\n", want: "BA"},
		{name: "replace resets", document: "K = A\nK += B\nK = C\n", want: "C"},
		{name: "extension without base", document: "K += B\n", want: "B"},
		{name: "mixed", document: "K = mid\nK <+= pre-\nK += -post\n", want: "pre-mid-post"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storeFrom(t, tt.document)
			got, ok := store.Resolve("K", "", nil)
			if !ok {
				t.Fatalf("expected K to resolve")
			}
			if got != tt.want {
				t.Fatalf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveConditions(t *testing.T) {
	store := storeFrom(t, "/^abc/ K = Z\n")
	if got, ok := store.Resolve("K", "abcd", nil); !ok || got != "Z" {
		t.Fatalf("Resolve(abcd) = %q, %v; want Z, true", got, ok)
	}
	if got, ok := store.Resolve("K", "xyz", nil); ok {
		t.Fatalf("Resolve(xyz) = %q; want no result", got)
	}
}

func TestConditionedEntriesAccumulateUntilPlainReplace(t *testing.T) {
	store := storeFrom(t, "K = base\n/mic/ K += -mic\n/host/ K = host\n")
	cases := map[string]string{
		"guest":   "base",
		"mic2":    "base-mic",
		"hostmic": "host",
		"host":    "host",
	}
	for condition, want := range cases {
		if got, _ := store.Resolve("K", condition, nil); got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", condition, got, want)
		}
	}

	store = storeFrom(t, "/x/ K = 1\nK = 2\n/x/ K += 3\n")
	if got, _ := store.Resolve("K", "y", nil); got != "2" {
		t.Fatalf("expected unconditional replace to reset chain, got %q", got)
	}
	if got, _ := store.Resolve("K", "x", nil); got != "23" {
		t.Fatalf("expected conditioned extension after reset, got %q", got)
	}
}

func TestConditionIsSearchNotFullMatch(t *testing.T) {
	store := storeFrom(t, "/mic/ K = hit\n")
	if got, ok := store.Resolve("K", "host-mic-2", nil); !ok || got != "hit" {
		t.Fatalf("expected substring match, got %q, %v", got, ok)
	}
}

func TestResolveSubstitution(t *testing.T) {
	tests := []struct {
		name     string
		document string
		vars     config.Vars
		want     string
	}{
		{name: "double dollar is literal", document: "K = $$x", vars: config.Vars{"x": "Q"}, want: "$x"},
		{name: "escaped dollar is literal", document: `K = \$x`, vars: config.Vars{"x": "Q"}, want: "$x"},
		{name: "bare name", document: "K = $x", vars: config.Vars{"x": "Q"}, want: "Q"},
		{name: "missing name", document: "K = [$x]", vars: nil, want: "[]"},
		{name: "bracketed name", document: "K = level_in=$(level)dB", vars: config.Vars{"level": "-3.5"}, want: "level_in=-3.5dB"},
		{name: "bare name stops at punctuation", document: "K = $dep1,next", vars: config.Vars{"dep1": "a.flac"}, want: "a.flac,next"},
		{name: "no rescanning", document: "K = $(a)", vars: config.Vars{"a": "$b", "b": "nope"}, want: "$b"},
		{name: "unterminated bracket", document: "K = x$(level", vars: config.Vars{"level": "7"}, want: "x7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storeFrom(t, tt.document)
			got, _ := store.Resolve("K", "", tt.vars)
			if got != tt.want {
				t.Fatalf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveEmptyIsAbsent(t *testing.T) {
	store := storeFrom(t, "K =\n")
	if _, ok := store.Resolve("K", "", nil); ok {
		t.Fatal("expected empty value to resolve as absent")
	}
	if _, ok := store.Resolve("missing", "", nil); ok {
		t.Fatal("expected unknown key to resolve as absent")
	}
}

func TestTypedReaders(t *testing.T) {
	store := storeFrom(t, `
[t]
yes = y
no = n
zero = 0
false = False
word = enabled
int = 12
float = 3.75
junk = abc
spaced =  42
`)

	bools := map[string]bool{
		"t.yes":     true,
		"t.no":      false,
		"t.zero":    false,
		"t.false":   false,
		"t.word":    true,
		"t.missing": false,
	}
	for key, want := range bools {
		if got := store.Bool(key, ""); got != want {
			t.Fatalf("Bool(%s) = %v, want %v", key, got, want)
		}
	}

	if got := store.Int("t.int", ""); got != 12 {
		t.Fatalf("Int = %d, want 12", got)
	}
	if got := store.Int("t.float", ""); got != 3 {
		t.Fatalf("Int(float) = %d, want 3", got)
	}
	if got := store.Int("t.junk", ""); got != 0 {
		t.Fatalf("Int(junk) = %d, want 0", got)
	}
	if got := store.Int("t.spaced", ""); got != 42 {
		t.Fatalf("Int(spaced) = %d, want 42", got)
	}
	if got := store.Float("t.float", ""); got != 3.75 {
		t.Fatalf("Float = %g, want 3.75", got)
	}
	if got := store.Float("t.missing", ""); got != 0 {
		t.Fatalf("Float(missing) = %g, want 0", got)
	}
}

func TestLines(t *testing.T) {
	store := storeFrom(t, "K = host\\n\\n  guest \nK += \\nmusic\n")
	got := store.Lines("K", "", nil)
	want := []string{"host", "guest", "music"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lines = %#v, want %#v", got, want)
	}
	if lines := store.Lines("missing", "", nil); lines != nil {
		t.Fatalf("expected nil for missing key, got %#v", lines)
	}
}
