package workload

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest/config"
)

// extractor pulls one variable out of a response.
type extractor struct {
	name   string
	source string
	path   string
	re     *regexp.Regexp
}

func compileExtractors(in []config.ExtractConfig) ([]*extractor, error) {
	out := make([]*extractor, 0, len(in))
	for _, ex := range in {
		e := &extractor{name: ex.Name, source: ex.Source, path: ex.Path}
		if ex.Regex != "" {
			re, err := regexp.Compile(ex.Regex)
			if err != nil {
				return nil, fmt.Errorf("extract %q: invalid regex: %w", ex.Name, err)
			}
			e.re = re
		}
		out = append(out, e)
	}
	return out, nil
}

// apply returns the extracted value and whether anything was found.
func (e *extractor) apply(resp *http.Response) (string, bool) {
	var value string
	switch e.source {
	case "status":
		if resp.StatusCode == 0 {
			return "", false
		}
		value = strconv.Itoa(resp.StatusCode)
	case "header":
		value = resp.Header(e.path)
	case "body":
		value = resp.BodyString()
	case "json":
		result := resp.JSON(e.path)
		if !result.Exists() {
			return "", false
		}
		value = result.String()
	}

	if e.re != nil {
		m := e.re.FindStringSubmatch(value)
		switch {
		case m == nil:
			return "", false
		case len(m) > 1:
			value = m[1]
		default:
			value = m[0]
		}
	}
	return value, value != "" || e.source == "json"
}
