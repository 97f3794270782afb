// Package searchkey derives canonical index keys for people-search pages.
//
// A key is the canonicalized query text followed by "_<page>". The same key
// must come out whether it is built from the query the driver composed or
// from the URL parameters the capture extension reports, otherwise captures
// would never deduplicate against the driver's skip checks.
package searchkey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	// ErrMissingKeywords is returned when a capture body has no url_params.keywords.
	ErrMissingKeywords = errors.New("url_params.keywords is required")
	// ErrInvalidKeywords is returned when keywords cannot be percent-decoded.
	ErrInvalidKeywords = errors.New("url_params.keywords is not valid percent-encoding")
	// ErrInvalidPage is returned when url_params.page is not a positive integer.
	ErrInvalidPage = errors.New("url_params.page must be a positive integer")
	// ErrPageSuffix is returned when a key does not end in the expected page segment.
	ErrPageSuffix = errors.New("key does not end with the page segment")
)

// DefaultPage is assumed when a capture does not report a page.
const DefaultPage = 1

// Key identifies one (query, page) pair. Query is already canonical.
type Key struct {
	Query string
	Page  int
}

// String renders the key as stored in the index.
func (k Key) String() string {
	return k.Query + "_" + strconv.Itoa(k.Page)
}

// Prev returns the key of the preceding page of the same query.
func (k Key) Prev() Key {
	return Key{Query: k.Query, Page: k.Page - 1}
}

// Canonicalize lower-cases s, replaces spaces with underscores and drops
// double quotes.
func Canonicalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, `"`, "")
}

// FromSearchQuery builds the key for a query composed by the driver.
func FromSearchQuery(query string, page int) Key {
	return Key{Query: Canonicalize(query), Page: page}
}

// URLParams mirrors the url_params object posted by the capture extension.
// Page arrives as a string but some clients send a bare number.
type URLParams struct {
	Keywords *string         `json:"keywords"`
	Page     json.RawMessage `json:"page,omitempty"`
}

// RequestBody is the part of a capture body the key depends on. Everything
// else in the body is stored opaquely.
type RequestBody struct {
	URLParams *URLParams `json:"url_params"`
}

// FromRequestBody builds the key for a captured page.
func FromRequestBody(body RequestBody) (Key, error) {
	if body.URLParams == nil || body.URLParams.Keywords == nil {
		return Key{}, ErrMissingKeywords
	}
	// Path unescaping leaves "+" intact; the driver encodes spaces as %20.
	keywords, err := url.PathUnescape(*body.URLParams.Keywords)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrInvalidKeywords, err)
	}
	page, err := parsePage(body.URLParams.Page)
	if err != nil {
		return Key{}, err
	}
	return Key{Query: Canonicalize(keywords), Page: page}, nil
}

func parsePage(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return DefaultPage, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidPage, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return DefaultPage, nil
		}
	}
	page, err := strconv.Atoi(text)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPage, raw)
	}
	return page, nil
}

// FromJSON decodes raw as a capture body and builds its key.
func FromJSON(raw []byte) (Key, error) {
	var body RequestBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return Key{}, fmt.Errorf("decode capture body: %w", err)
	}
	return FromRequestBody(body)
}

// PrevKey rewrites the trailing "_<currentPage>" segment of key to refer to
// the previous page. Digits inside the query text are left alone.
func PrevKey(key string, currentPage int) (string, error) {
	suffix := "_" + strconv.Itoa(currentPage)
	if currentPage < 1 || !strings.HasSuffix(key, suffix) {
		return "", fmt.Errorf("%w: %q does not end with %q", ErrPageSuffix, key, suffix)
	}
	return Key{Query: strings.TrimSuffix(key, suffix), Page: currentPage - 1}.String(), nil
}

// BuildQuery composes the boolean people-search query for a company. With an
// empty company the positions alone are OR-ed together.
func BuildQuery(company string, positions []string) string {
	company = strings.TrimSpace(company)
	if company == "" {
		return strings.Join(positions, " OR ")
	}
	terms := make([]string, 0, len(positions))
	for _, position := range positions {
		terms = append(terms, company+" "+position)
	}
	return strings.Join(terms, " OR ")
}

// SearchURL fills the people-search template with the query and page. The
// template carries two %s verbs, keywords first. Spaces are encoded as %20 so
// the keywords reported back by the extension decode to the same text.
func SearchURL(template, query string, page int) string {
	keywords := strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	return fmt.Sprintf(template, keywords, strconv.Itoa(page))
}
