package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"off", true, false},
		{" true ", false, true},
		{"garbage", true, true},
		{"garbage", false, false},
	}
	for _, c := range cases {
		t.Setenv("AUTONOMA_TEST_BOOL", c.value)
		if got := ParseBoolEnv("AUTONOMA_TEST_BOOL", c.def); got != c.want {
			t.Errorf("ParseBoolEnv(%q, default %v) = %v, want %v", c.value, c.def, got, c.want)
		}
	}
}
