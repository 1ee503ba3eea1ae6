package provider

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/teranos/texsense/errors"
	"github.com/teranos/texsense/logger"
)

// BibEntry is one entry of a BibTeX database.
type BibEntry struct {
	Key    string            `json:"key"`
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields,omitempty"`
	File   string            `json:"file,omitempty"`
}

// Title returns the title field, or "".
func (e BibEntry) Title() string { return e.Fields["title"] }

// Summary is a one-line "author (year)" description.
func (e BibEntry) Summary() string {
	author, year := e.Fields["author"], e.Fields["year"]
	switch {
	case author != "" && year != "":
		return author + " (" + year + ")"
	case author != "":
		return author
	default:
		return year
	}
}

// ParseBib extracts entries from BibTeX source. @string, @preamble and
// @comment blocks are skipped; malformed entries are dropped, not fatal.
func ParseBib(src string) []BibEntry {
	p := bibParser{src: src}
	var entries []BibEntry
	for {
		at := strings.IndexByte(p.src[p.pos:], '@')
		if at < 0 {
			return entries
		}
		p.pos += at + 1
		if entry, ok := p.entry(); ok {
			entries = append(entries, entry)
		}
	}
}

type bibParser struct {
	src string
	pos int
}

func (p *bibParser) entry() (BibEntry, bool) {
	typ := strings.ToLower(p.word())
	p.space()
	if typ == "" || p.pos >= len(p.src) {
		return BibEntry{}, false
	}
	opener := p.src[p.pos]
	if opener != '{' && opener != '(' {
		return BibEntry{}, false
	}
	closer := byte('}')
	if opener == '(' {
		closer = ')'
	}
	p.pos++

	switch typ {
	case "comment", "string", "preamble":
		p.skipBalanced(opener, closer)
		return BibEntry{}, false
	}

	p.space()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != ',' && p.src[p.pos] != closer && !isSpace(p.src[p.pos]) {
		p.pos++
	}
	key := p.src[start:p.pos]
	if key == "" {
		return BibEntry{}, false
	}
	entry := BibEntry{Key: key, Type: typ, Fields: map[string]string{}}

	for {
		p.space()
		if p.pos >= len(p.src) {
			return entry, true
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			continue
		case closer:
			p.pos++
			return entry, true
		case '@':
			// unterminated entry; let the caller resync on the next one
			return entry, true
		}

		name := strings.ToLower(p.word())
		p.space()
		if name == "" || p.pos >= len(p.src) || p.src[p.pos] != '=' {
			p.skipTo(',', closer)
			continue
		}
		p.pos++
		entry.Fields[name] = p.value(closer)
	}
}

// value reads a field value: brace groups, quoted strings and bare words
// joined with #.
func (p *bibParser) value(closer byte) string {
	var parts []string
	for {
		p.space()
		if p.pos >= len(p.src) {
			break
		}
		switch c := p.src[p.pos]; {
		case c == '{':
			p.pos++
			start := p.pos
			p.skipBalanced('{', '}')
			end := p.pos - 1
			if end < start {
				end = start
			}
			parts = append(parts, p.src[start:end])
		case c == '"':
			p.pos++
			start := p.pos
			depth := 0
			for p.pos < len(p.src) {
				ch := p.src[p.pos]
				if ch == '{' {
					depth++
				} else if ch == '}' {
					depth--
				} else if ch == '"' && depth == 0 {
					break
				}
				p.pos++
			}
			parts = append(parts, p.src[start:p.pos])
			if p.pos < len(p.src) {
				p.pos++
			}
		default:
			start := p.pos
			for p.pos < len(p.src) && p.src[p.pos] != ',' && p.src[p.pos] != closer && p.src[p.pos] != '#' && !isSpace(p.src[p.pos]) {
				p.pos++
			}
			parts = append(parts, p.src[start:p.pos])
		}
		p.space()
		if p.pos < len(p.src) && p.src[p.pos] == '#' {
			p.pos++
			continue
		}
		break
	}
	return collapseSpace(stripBraces.Replace(strings.Join(parts, "")))
}

// skipBalanced advances past the close matching an already-consumed open.
func (p *bibParser) skipBalanced(opener, closer byte) {
	depth := 1
	for p.pos < len(p.src) && depth > 0 {
		switch p.src[p.pos] {
		case opener:
			depth++
		case closer:
			depth--
		}
		p.pos++
	}
}

func (p *bibParser) skipTo(stops ...byte) {
	for p.pos < len(p.src) {
		if strings.IndexByte(string(stops), p.src[p.pos]) >= 0 {
			return
		}
		p.pos++
	}
}

func (p *bibParser) word() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' && c != '-' && c != ':' && c != '.' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *bibParser) space() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

var stripBraces = strings.NewReplacer("{", "", "}", "")

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// BibFiles discovers .bib files under a root directory and caches their
// parsed entries. Entries are keyed by path and modification time, so an
// edited file is re-read on the next lookup.
type BibFiles struct {
	root   string
	cache  *cache.Cache
	logger *zap.SugaredLogger
}

// Cache lifetimes for parsed bibliographies.
const (
	bibCacheTTL     = 10 * time.Minute
	bibCacheCleanup = 15 * time.Minute
)

func NewBibFiles(root string, log *zap.SugaredLogger) *BibFiles {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &BibFiles{
		root:   root,
		cache:  cache.New(bibCacheTTL, bibCacheCleanup),
		logger: log,
	}
}

// Paths lists the .bib files under the root, skipping hidden directories.
func (b *BibFiles) Paths() ([]string, error) {
	if b.root == "" {
		return nil, nil
	}
	var paths []string
	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != b.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".bib") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", b.root)
	}
	sort.Strings(paths)
	return paths, nil
}

// Entries returns every entry from every .bib file under the root. Files
// that fail to read are logged and skipped.
func (b *BibFiles) Entries() []BibEntry {
	paths, err := b.Paths()
	if err != nil {
		b.logger.Warnw("Failed to scan for bibliographies", logger.FieldError, err)
		return nil
	}
	var all []BibEntry
	for _, path := range paths {
		entries, err := b.File(path)
		if err != nil {
			b.logger.Warnw("Failed to read bibliography", logger.FieldFile, path, logger.FieldError, err)
			continue
		}
		all = append(all, entries...)
	}
	return all
}

// File returns the parsed entries of one .bib file.
func (b *BibFiles) File(path string) ([]BibEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	key := path + "@" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
	if cached, ok := b.cache.Get(key); ok {
		return cached.([]BibEntry), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	entries := ParseBib(string(data))
	for i := range entries {
		entries[i].File = path
	}
	b.cache.SetDefault(key, entries)
	b.logger.Debugw("Parsed bibliography", logger.FieldFile, path, logger.FieldCount, len(entries))
	return entries, nil
}
