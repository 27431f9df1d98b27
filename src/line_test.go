package deployns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalLine(t *testing.T) {
	tests := map[string]string{
		"中国电信":          LineChinaTelecom,
		"电信":            LineChinaTelecom,
		" 联通 ":          LineChinaUnicom,
		"china mobile":  LineChinaMobile,
		"教育网":           LineCERNET,
		"鹏博士":           LinePengboshi,
		"科技网":           LineCSTNET,
		"境外":            "境外",
		DefaultLine:     DefaultLine,
		LineChinaUnicom: LineChinaUnicom,
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalLine(in), in)
	}
}

func TestIsKnownLine(t *testing.T) {
	assert.True(t, IsKnownLine(LineCERNET))
	assert.True(t, IsKnownLine("中国移动"))
	assert.False(t, IsKnownLine(DefaultLine))
	assert.False(t, IsKnownLine("Unknown ISP"))
}

func TestLineMap(t *testing.T) {
	m := LineMap{LineChinaTelecom: "Dianxin", LineChinaUnicom: "Liantong"}.
		Merge(map[string]string{"中国电信": "ctc", "中国移动": "Yidong"})

	assert.Equal(t, "ctc", m.ToProvider(LineChinaTelecom))
	assert.Equal(t, "Liantong", m.ToProvider("联通"))
	assert.Equal(t, "Yidong", m.ToProvider(LineChinaMobile))
	assert.Equal(t, LinePengboshi, m.ToProvider(LinePengboshi))

	assert.Equal(t, LineChinaTelecom, m.FromProvider("ctc"))
	assert.Equal(t, LineChinaMobile, m.FromProvider("Yidong"))
	assert.Equal(t, LineCERNET, m.FromProvider("教育网"))
	assert.Equal(t, "Dianxin", m.FromProvider("Dianxin"))
}

func TestLineMapFromProviderSharedValue(t *testing.T) {
	m := LineMap{LineChinaUnicom: DefaultLine, LineChinaTelecom: DefaultLine}
	assert.Equal(t, LineChinaTelecom, m.FromProvider(DefaultLine))
}

func TestEffectiveLineMap(t *testing.T) {
	p := newFakeProvider()
	p.lines = LineMap{LineChinaTelecom: "电信"}
	m := effectiveLineMap(p, map[string]string{LineChinaUnicom: "联通"})
	assert.Equal(t, LineMap{LineChinaTelecom: "电信", LineChinaUnicom: "联通"}, m)

	// The provider's own map is left alone.
	assert.Len(t, p.lines, 1)
}
