package symbolicate

import "testing"

func TestDemangleRust(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{
			"_ZN4core3fmt5Write9write_fmt17habcdef0123456789E",
			"core::fmt::Write::write_fmt",
		},
		{
			"_ZN27_$LT$Foo$u20$as$u20$Bar$GT$3fmt17h0123456789abcdefE",
			"<Foo as Bar>::fmt",
		},
		{
			"_ZN3std9panicking11begin_panic17h0123456789abcdefE.llvm.12345",
			"std::panicking::begin_panic",
		},
		{
			"_ZN5alloc5boxed12Box$LT$T$GT$3new17h0123456789abcdefE",
			"alloc::boxed::Box<T>::new",
		},
		{
			"__ZN4core6option15Option$LT$T$GT$6unwrap17h0123456789abcdefE",
			"core::option::Option<T>::unwrap",
		},
		// Without a trailing hash the whole path survives.
		{"_ZN3foo3barE", "foo::bar"},
	}

	for _, tt := range tests {
		if got := DemangleRust(tt.symbol); got != tt.want {
			t.Fatalf("DemangleRust(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestDemangleRustLeavesUnmangledAlone(t *testing.T) {
	for _, symbol := range []string{
		"main",
		"core::fmt::Write::write_fmt",
		"_ZN",
		"_ZNnonsense",
		"_ZN4coreE extra",
		"",
	} {
		if got := DemangleRust(symbol); got != symbol {
			t.Fatalf("DemangleRust(%q) = %q, want unchanged", symbol, got)
		}
	}
}
