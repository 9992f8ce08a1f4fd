package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := map[string]string{
		"  Jane  ":                              "Jane",
		"<b>Jane</b> Doe":                       "Jane Doe",
		"&lt;script&gt;alert(1)&lt;/script&gt;": "alert(1)",
		"line\none\t two":                       "line one two",
	}

	for in, want := range tests {
		if got := Text(in); got != want {
			t.Fatalf("Text(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("hello", 3); got != "hel" {
		t.Fatalf("unexpected %q", got)
	}
	// "é" is two bytes; cutting in the middle must back off.
	if got := Truncate("aé", 2); got != "a" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}
