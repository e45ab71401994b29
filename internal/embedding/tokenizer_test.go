package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || len(types) != 10 {
		t.Errorf("len(ids)=%d len(types)=%d", len(ids), len(types))
	}
	if ids[0] != clsTokenID {
		t.Errorf("expected CLS %d, got %d", clsTokenID, ids[0])
	}
	if ids[3] != sepTokenID {
		t.Errorf("expected SEP at 3, got %d", ids[3])
	}
	if attn[0] != 1 || attn[3] != 1 || attn[4] != 0 {
		t.Errorf("unexpected attention mask %v", attn)
	}
}

func TestSimpleTokenizer_truncates(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("a b c d e f g h i j k l", 5)
	if len(ids) != 5 {
		t.Fatalf("len(ids)=%d", len(ids))
	}
	for i, a := range attn {
		if a != 1 {
			t.Errorf("attention[%d] = %d, want 1 for a full window", i, a)
		}
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  Exam, SCHEDULE:  sem-3 ")
	want := []string{"exam", "schedule", "sem", "3"}
	if len(words) != len(want) {
		t.Fatalf("got %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("words[%d] = %q, want %q", i, words[i], want[i])
		}
	}
	if SplitWords("") != nil {
		t.Error("empty string should return nil")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("different inputs should hash differently")
	}
	for _, w := range []string{"abc", "exam", "schedule", "semester", "fee payment", ""} {
		if h := HashString(w); h>>63 != 0 {
			t.Errorf("HashString(%q) = %d has the top bit set", w, h)
		}
	}
}

func TestHashEmbedder_bucketInRange(t *testing.T) {
	e := NewHashEmbedder(7)
	for _, w := range []string{"abc", "exam", "schedule", "semester", "exam schedule", "15/03/2024"} {
		if b := e.bucket(w); b >= 7 {
			t.Errorf("bucket(%q) = %d, want < 7", w, b)
		}
	}
}
