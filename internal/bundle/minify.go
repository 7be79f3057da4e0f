package bundle

import (
	"bytes"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

var minifier *minify.M

func init() {
	minifier = minify.New()
	minifier.AddFunc("text/css", css.Minify)
	minifier.AddFunc("text/html", html.Minify)
}

func minifyCSS(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := minifier.Minify("text/css", &out, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func minifyHTML(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := minifier.Minify("text/html", &out, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
