package flow

import "testing"

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{
			name: "bare object",
			in:   `{"a": 1}`,
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "surrounded by prose",
			in:   "Sure, here is the result:\n{\"a\": 1}\nLet me know if you need more.",
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "nested objects",
			in:   `prefix {"a": {"b": {"c": 3}}} suffix`,
			want: `{"a": {"b": {"c": 3}}}`,
			ok:   true,
		},
		{
			name: "braces inside strings",
			in:   `{"text": "closing } brace and { opening"}`,
			want: `{"text": "closing } brace and { opening"}`,
			ok:   true,
		},
		{
			name: "escaped quote inside string",
			in:   `{"text": "she said \"}\" loudly"}`,
			want: `{"text": "she said \"}\" loudly"}`,
			ok:   true,
		},
		{
			name: "no object at all",
			in:   "just plain text",
			want: "",
			ok:   false,
		},
		{
			name: "open brace never closed",
			in:   `{"a": 1`,
			want: "",
			ok:   false,
		},
		{
			name: "unbalanced falls back to last brace",
			in:   `{"a": {"b": 1}`,
			want: `{"a": {"b": 1}`,
			ok:   true,
		},
		{
			name: "first of two objects wins",
			in:   `{"first": 1} {"second": 2}`,
			want: `{"first": 1}`,
			ok:   true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(c.in)
			if ok != c.ok {
				t.Fatalf("ok = %v, want %v", ok, c.ok)
			}
			if got != c.want {
				t.Errorf("got %q, want %q", got, c.want)
			}
		})
	}
}
