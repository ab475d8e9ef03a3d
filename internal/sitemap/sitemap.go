// Package sitemap renders a sitemaps.org urlset for a batch and writes it to disk.
package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []entry  `xml:"url"`
}

type entry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Build renders urls as a sitemap document with lastmod set to now's date.
func Build(urls []string, now time.Time) ([]byte, error) {
	set := urlSet{XMLNS: namespace, URLs: make([]entry, 0, len(urls))}
	lastMod := now.UTC().Format(time.DateOnly)
	for _, u := range urls {
		set.URLs = append(set.URLs, entry{
			Loc:        u,
			LastMod:    lastMod,
			ChangeFreq: "daily",
			Priority:   "1.0",
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// FileWriter writes the sitemap for each batch to a fixed path.
type FileWriter struct {
	path string
	now  func() time.Time
}

func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path, now: time.Now}
}

func (w *FileWriter) Write(urls []string) error {
	data, err := Build(urls, w.now())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("failed to create sitemap directory: %w", err)
	}
	if err := os.WriteFile(w.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sitemap %s: %w", w.path, err)
	}
	return nil
}
