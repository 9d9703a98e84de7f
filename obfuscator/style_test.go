package obfuscator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDeclarations(t *testing.T) {
	decls := ParseDeclarations("Margin-Left: 55px\ncolor: red;;  ;broken\n--Brand-Color: #f00")
	assert.Equal(t, []Declaration{
		{Property: "margin-left", Value: "55px"},
		{Property: "color", Value: "red"},
		{Property: "--Brand-Color", Value: "#f00"},
	}, decls)

	assert.Empty(t, ParseDeclarations(""))
	assert.Empty(t, ParseDeclarations(": ; color:"))
}

func TestNormalizeCSS(t *testing.T) {
	cases := map[string]string{
		"background: blue; padding: 20px":   "background: blue; padding: 20px;",
		"background:blue\npadding:20px;\n":  "background: blue; padding: 20px;",
		"margin-left: 55px\r\ncolor: red":   "margin-left: 55px; color: red;",
		"background-image: url(http://x/y)": "background-image: url(http://x/y);",
		"   ":                               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCSS(in), in)
	}
}

func TestNormalizeClasses(t *testing.T) {
	assert.Equal(t, "bg-red-500 p-4 rounded", NormalizeClasses("  bg-red-500\tp-4\n rounded "))
	assert.Equal(t, "", NormalizeClasses(" \n"))
}

func TestJSXStyle(t *testing.T) {
	got := JSXStyle(ParseDeclarations("margin-left: 55px\ncolor: red"))
	assert.Equal(t, "{{marginLeft:'55px', color:'red'}}", got)

	got = JSXStyle(ParseDeclarations("--gap: 4px; font-family: 'Inter'"))
	assert.Equal(t, `{{'--gap':'4px', fontFamily:'\'Inter\''}}`, got)
}

func TestCamelCase(t *testing.T) {
	cases := map[string]string{
		"color":             "color",
		"margin-left":       "marginLeft",
		"border-top-width":  "borderTopWidth",
		"-webkit-transform": "WebkitTransform",
		"-ms-filter":        "msFilter",
		"white-space":       "whiteSpace",
	}
	for in, want := range cases {
		assert.Equal(t, want, camelCase(in), in)
	}
}
