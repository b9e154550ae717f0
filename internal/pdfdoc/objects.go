package pdfdoc

import (
	"encoding/hex"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func number(o types.Object) (float64, bool) {
	switch v := o.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

func name(o types.Object) string {
	if n, ok := o.(types.Name); ok {
		return string(n)
	}
	return ""
}

func textValue(o types.Object) string {
	switch v := o.(type) {
	case types.StringLiteral:
		return string(v)
	case types.HexLiteral:
		b, err := hex.DecodeString(string(v))
		if err != nil {
			return string(v)
		}
		// UTF-16BE strings carry a BOM and interleaved zero bytes.
		return strings.Map(func(r rune) rune {
			if r == 0 || r == 0xfe || r == 0xff {
				return -1
			}
			return r
		}, string(b))
	case types.Name:
		return string(v)
	case nil:
		return ""
	}
	return o.String()
}

func copyDict(d types.Dict) types.Dict {
	cp := types.Dict{}
	for k, v := range d {
		cp[k] = v
	}
	return cp
}

func filterNames(sd types.StreamDict) []string {
	names := make([]string, 0, len(sd.FilterPipeline))
	for _, f := range sd.FilterPipeline {
		names = append(names, f.Name)
	}
	return names
}

// plainFlate reports a single FlateDecode filter without predictor parameters.
func plainFlate(sd types.StreamDict) bool {
	return len(sd.FilterPipeline) == 1 &&
		sd.FilterPipeline[0].Name == "FlateDecode" &&
		len(sd.FilterPipeline[0].DecodeParms) == 0
}

func newStream(data []byte, filter string) types.StreamDict {
	d := types.Dict{"Length": types.Integer(len(data))}
	sd := types.StreamDict{Dict: d, Raw: data}
	if filter != "" {
		d["Filter"] = types.Name(filter)
		sd.FilterPipeline = []types.PDFFilter{{Name: filter}}
	}
	l := int64(len(data))
	sd.StreamLength = &l
	return sd
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
