package vocab

import "testing"

func TestBuildLowercasesAndLastWriteWins(t *testing.T) {
	idx := Build([]string{"Apple", "banana", "APPLE", "Cherry"})

	if row, ok := idx.Lookup("apple"); !ok || row != 2 {
		t.Errorf("apple: got (%d, %v), want (2, true)", row, ok)
	}
	if row, ok := idx.Lookup("cherry"); !ok || row != 3 {
		t.Errorf("cherry: got (%d, %v), want (3, true)", row, ok)
	}
	if _, ok := idx.Lookup("Apple"); ok {
		t.Error("lookups are by lowercase key; mixed case should miss")
	}
	if _, ok := idx.Lookup("durian"); ok {
		t.Error("absent token must report not found")
	}
	if idx.Len() != 3 {
		t.Errorf("expected 3 distinct keys, got %d", idx.Len())
	}
}

func TestBuildEmpty(t *testing.T) {
	idx := Build(nil)
	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got %d", idx.Len())
	}
	if _, ok := idx.Lookup(""); ok {
		t.Error("empty index must not find anything")
	}
}
