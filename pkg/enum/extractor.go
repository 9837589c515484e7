package enum

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ledongthuc/pdf"
	"github.com/ulikunitz/xz"
)

// ErrExtractLimit is returned when extracted content exceeds ExtractLimits.
var ErrExtractLimit = errors.New("extraction limit exceeded")

// ExtractedContent is text or data pulled out of a container file.
type ExtractedContent struct {
	Name    string // member path; empty for single-stream formats
	Content []byte
}

// ExtractLimits bounds how much data extraction may produce.
type ExtractLimits struct {
	MaxMemberSize int64 // largest single member or stream
	MaxTotalSize  int64 // sum over all members of one file
	MaxMembers    int   // members read from one archive
	IncludeBinary bool  // keep members with a NUL byte in their first 8KB
}

// DefaultExtractLimits returns production defaults.
func DefaultExtractLimits() ExtractLimits {
	return ExtractLimits{
		MaxMemberSize: 64 << 20,
		MaxTotalSize:  256 << 20,
		MaxMembers:    10000,
	}
}

// orDefault fills zero fields from DefaultExtractLimits.
func (l ExtractLimits) orDefault() ExtractLimits {
	d := DefaultExtractLimits()
	if l.MaxMemberSize <= 0 {
		l.MaxMemberSize = d.MaxMemberSize
	}
	if l.MaxTotalSize <= 0 {
		l.MaxTotalSize = d.MaxTotalSize
	}
	if l.MaxMembers <= 0 {
		l.MaxMembers = d.MaxMembers
	}
	return l
}

// extractors maps an extension (see getExtension) to its extractor.
var extractors = map[string]func([]byte, ExtractLimits) ([]ExtractedContent, error){
	".xlsx":   extractXLSX,
	".docx":   extractDOCX,
	".pdf":    extractPDF,
	".zip":    extractZIP,
	".jar":    extractZIP,
	".7z":     extract7z,
	".tar":    extractTar,
	".tar.gz": extractTarGz,
	".tgz":    extractTarGz,
	".gz":     extractGzip,
	".zst":    extractZstd,
	".xz":     extractXz,
}

// ExtractText extracts scannable content from a supported container file.
func ExtractText(path string, content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	ext := getExtension(path)
	fn, ok := extractors[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
	return fn(content, limits.orDefault())
}

// getExtension returns the lowercase extension, keeping ".tar.gz" whole.
func getExtension(p string) string {
	lower := strings.ToLower(p)
	if strings.HasSuffix(lower, ".tar.gz") {
		return ".tar.gz"
	}
	return filepath.Ext(lower)
}

// isExtractable reports whether ext (without the dot) has an extractor.
func isExtractable(ext string) bool {
	_, ok := extractors["."+ext]
	return ok
}

// readLimited reads r fully, failing once more than limit bytes arrive.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrExtractLimit, limit)
	}
	return data, nil
}

// memberCollector applies limits across the members of one archive and
// drops empty members, and binary ones unless limits.IncludeBinary is set.
type memberCollector struct {
	limits ExtractLimits
	total  int64
	out    []ExtractedContent
}

// add reads one member. Members over the size limit are skipped; running
// past the total or member-count limit fails the whole archive.
func (c *memberCollector) add(name string, r io.Reader) error {
	if len(c.out) >= c.limits.MaxMembers {
		return fmt.Errorf("%w: more than %d members", ErrExtractLimit, c.limits.MaxMembers)
	}
	data, err := readLimited(r, c.limits.MaxMemberSize)
	if errors.Is(err, ErrExtractLimit) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	c.total += int64(len(data))
	if c.total > c.limits.MaxTotalSize {
		return fmt.Errorf("%w: more than %d bytes in total", ErrExtractLimit, c.limits.MaxTotalSize)
	}
	if len(data) == 0 || (!c.limits.IncludeBinary && isBinary(data)) {
		return nil
	}
	c.out = append(c.out, ExtractedContent{Name: name, Content: data})
	return nil
}

func extractZIP(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}

	c := &memberCollector{limits: limits}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		err = c.add(f.Name, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}
	return c.out, nil
}

func extract7z(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open 7z: %w", err)
	}

	c := &memberCollector{limits: limits}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		err = c.add(f.Name, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}
	return c.out, nil
}

func extractTar(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	return readTar(bytes.NewReader(content), limits)
}

func extractTarGz(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	zr, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip: %w", err)
	}
	defer zr.Close()
	return readTar(zr, limits)
}

func readTar(r io.Reader, limits ExtractLimits) ([]ExtractedContent, error) {
	tr := tar.NewReader(r)
	c := &memberCollector{limits: limits}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return c.out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := c.add(hdr.Name, tr); err != nil {
			return nil, err
		}
	}
}

// singleStream wraps a decompressed stream as one unnamed member.
func singleStream(r io.Reader, limits ExtractLimits) ([]ExtractedContent, error) {
	data, err := readLimited(r, min(limits.MaxMemberSize, limits.MaxTotalSize))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || (!limits.IncludeBinary && isBinary(data)) {
		return nil, nil
	}
	return []ExtractedContent{{Content: data}}, nil
}

func extractGzip(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	zr, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip: %w", err)
	}
	defer zr.Close()
	return singleStream(zr, limits)
}

func extractZstd(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	zr, err := zstd.NewReader(bytes.NewReader(content),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(uint64(limits.MaxMemberSize)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zstd: %w", err)
	}
	defer zr.Close()
	return singleStream(zr, limits)
}

func extractXz(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	xr, err := xz.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open xz: %w", err)
	}
	return singleStream(xr, limits)
}

// extractXLSX returns the text of shared strings and worksheets.
func extractXLSX(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	return extractOfficeXML(content, limits, func(name string) bool {
		return name == "xl/sharedStrings.xml" ||
			(strings.HasPrefix(name, "xl/worksheets/sheet") && path.Ext(name) == ".xml")
	})
}

// extractDOCX returns the text of the main document part.
func extractDOCX(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	return extractOfficeXML(content, limits, func(name string) bool {
		return name == "word/document.xml"
	})
}

func extractOfficeXML(content []byte, limits ExtractLimits, want func(string) bool) ([]ExtractedContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open document as zip: %w", err)
	}

	var results []ExtractedContent
	for _, f := range zr.File {
		if !want(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := readLimited(rc, limits.MaxMemberSize)
		rc.Close()
		if err != nil {
			continue
		}
		if text := extractXMLText(data); text != "" {
			results = append(results, ExtractedContent{Name: f.Name, Content: []byte(text)})
		}
	}
	return results, nil
}

// extractPDF returns the plain text of all pages as one member.
func extractPDF(content []byte, limits ExtractLimits) ([]ExtractedContent, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
		if int64(text.Len()) > limits.MaxMemberSize {
			return nil, fmt.Errorf("%w: PDF text over %d bytes", ErrExtractLimit, limits.MaxMemberSize)
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, nil
	}
	return []ExtractedContent{{Name: "content", Content: []byte(text.String())}}, nil
}

// extractXMLText joins the non-blank character data of an XML document.
func extractXMLText(data []byte) string {
	var text strings.Builder
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		cd, ok := token.(xml.CharData)
		if !ok || strings.TrimSpace(string(cd)) == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString(" ")
		}
		text.WriteString(cleanText(string(cd)))
	}
	return text.String()
}

// cleanText collapses whitespace runs and drops non-printable runes.
func cleanText(s string) string {
	var result strings.Builder
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				result.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsPrint(r):
			result.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(result.String())
}
