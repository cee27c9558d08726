package headless

import (
	"bytes"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// maxRefreshDelay caps meta refresh delays.
const maxRefreshDelay = 24 * time.Hour

// document is what a load produced before it is committed.
type document struct {
	url       string
	status    int
	mime      string
	body      []byte
	redirects []hop
	title     string
	refresh   *refresh
}

type hop struct {
	from string
	to   string
}

type refresh struct {
	delay  time.Duration
	target string
}

// sniff fills in the mime type when the transport did not supply one.
func sniff(contentType string, body []byte) string {
	if contentType != "" {
		return contentType
	}
	return mimetype.Detect(body).String()
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// utf8Reader decodes body to UTF-8. Declared charsets win; undeclared
// non-UTF-8 content is guessed.
func utf8Reader(body []byte, contentType string) io.Reader {
	_, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain && name == "windows-1252" {
		if res, err := chardet.NewHtmlDetector().DetectBest(body); err == nil && res != nil {
			name = strings.ToLower(res.Charset)
		}
	}
	r, err := charset.NewReaderLabel(name, bytes.NewReader(body))
	if err != nil {
		return bytes.NewReader(body)
	}
	return r
}

// parseHTML extracts the title and any meta refresh of an HTML document.
func parseHTML(body []byte, contentType string) (string, *refresh) {
	root, err := htmlquery.Parse(utf8Reader(body, contentType))
	if err != nil {
		return "", nil
	}

	title := strings.Join(strings.Fields(goquery.NewDocumentFromNode(root).Find("title").First().Text()), " ")

	var r *refresh
	if metas, err := htmlquery.QueryAll(root, "//meta[@http-equiv]"); err == nil {
		for _, m := range metas {
			if !strings.EqualFold(htmlquery.SelectAttr(m, "http-equiv"), "refresh") {
				continue
			}
			if r = parseRefresh(htmlquery.SelectAttr(m, "content")); r != nil {
				break
			}
		}
	}
	return title, r
}

// parseRefresh parses a refresh header value such as `5; url=/next`. A value
// without a url refreshes the same document and is ignored.
func parseRefresh(content string) *refresh {
	delayPart, rest := content, ""
	if i := strings.IndexAny(content, ";,"); i >= 0 {
		delayPart, rest = content[:i], content[i+1:]
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(delayPart), 64)
	if err != nil || math.IsNaN(seconds) || seconds < 0 {
		return nil
	}
	if seconds > maxRefreshDelay.Seconds() {
		seconds = maxRefreshDelay.Seconds()
	}

	rest = strings.TrimSpace(rest)
	if len(rest) < 4 || !strings.EqualFold(rest[:3], "url") {
		return nil
	}
	rest = strings.TrimSpace(rest[3:])
	if !strings.HasPrefix(rest, "=") {
		return nil
	}
	target := strings.Trim(strings.TrimSpace(rest[1:]), `"'`)
	if target == "" {
		return nil
	}
	return &refresh{delay: time.Duration(seconds * float64(time.Second)), target: target}
}
