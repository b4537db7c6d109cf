package storage

import "testing"

func TestCleanTextComposesToNFC(t *testing.T) {
	decomposed := "  Cafe\u0301  "
	if got := cleanText(decomposed); got != "Caf\u00e9" {
		t.Fatalf("cleanText(%q) = %q", decomposed, got)
	}
}

func TestFoldKeyMatchesCaseVariants(t *testing.T) {
	if foldKey("Taken@Example.COM") != foldKey(" taken@example.com ") {
		t.Fatal("expected case variants to fold to the same key")
	}
	if foldKey("STRASSE@example.com") != foldKey("straße@example.com") {
		t.Fatal("expected full case folding of sharp s")
	}
}
