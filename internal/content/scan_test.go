package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"tj", "BT\n/F1 12 Tf\n72 712 Td\n(Hello World) Tj\nET", "Hello World"},
		{"tj array", "BT\n[(Cert) -120 (ificate)] TJ\nET", "Certificate"},
		{"escapes", `BT` + "\n" + `(a\(b\) \101) Tj` + "\nET", "a(b) A"},
		{"next line", "BT\n(first) Tj\n(second) '\nET", "first second"},
		{"no text", "q 1 0 0 1 0 0 cm /Im0 Do Q", ""},
		{"single line", "BT /F1 12 Tf 72 720 Td (Certificate of completion) Tj ET", "Certificate of completion"},
		{"carriage returns", "BT\r/F1 12 Tf\r(Hello world) Tj\rET\r", "Hello world"},
		{"two blocks on one line", "BT (first) Tj ET BT (second) Tj ET", "first second"},
		{"hex string", "BT <48656C6C6F> Tj ET", "Hello"},
		{"tj word gap", "BT [(Hello) -250 (world)] TJ ET", "Hello world"},
		{"nested parens", "BT (f(x) = y) Tj ET", "f(x) = y"},
		{"comment", "BT % (hidden) Tj\n(shown) Tj ET", "shown"},
		{"inline image", "BI /W 2 /H 1 /CS /G /BPC 8 ID \x01( EI BT (after) Tj ET", "after"},
		{"dictionary operand", "/Span << /ActualText (x) >> BDC BT (body) Tj ET EMC", "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText([]byte(tt.in)))
		})
	}
}

func TestFontsUsed(t *testing.T) {
	data := []byte("BT /F1 12 Tf (a) Tj /TT2 9.5 Tf (b) Tj ET\nBT\n/F1 10 Tf\nET")

	used := FontsUsed(data)
	assert.Equal(t, map[string]bool{"F1": true, "TT2": true}, used)
	assert.Empty(t, FontsUsed([]byte("/Im0 Do")))
	assert.Equal(t, map[string]bool{"F2": true}, FontsUsed([]byte("BT\r/F2 8 Tf\r(x) Tj\rET")))
}
