package symbol

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"chipaoi/internal/imgproc"
)

// markChars is the character set laser marks draw from. Lowercase is
// excluded; mark fonts have no case distinction.
const markChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Reader cross-checks a template-matched sequence with an independent text
// recognizer. Implementations must be safe for sequential reuse.
type Reader interface {
	Read(mark gocv.Mat) (string, error)
	Close() error
}

// TesseractReader is the production Reader backed by Tesseract.
type TesseractReader struct {
	client *gosseract.Client
}

// NewTesseractReader builds a reader tuned for single-line mark text:
// dictionary correction is disabled because mark sequences are never words.
func NewTesseractReader() (*TesseractReader, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("set ocr language: %w", err)
	}
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	return &TesseractReader{client: client}, nil
}

// Read recognizes the mark image as one line of text. The mark is binarized
// with Otsu and inverted so Tesseract sees dark glyphs on a light ground
// regardless of the ink polarity.
func (r *TesseractReader) Read(mark gocv.Mat) (string, error) {
	if mark.Empty() {
		return "", fmt.Errorf("empty mark image")
	}
	if err := r.client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return "", fmt.Errorf("set page mode: %w", err)
	}
	if err := r.client.SetWhitelist(markChars); err != nil {
		return "", fmt.Errorf("set whitelist: %w", err)
	}

	bin := imgproc.OtsuBinarize(mark, imgproc.Light)
	defer bin.Close()
	imgproc.Invert(&bin)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, bin)
	if err != nil {
		return "", fmt.Errorf("encode mark: %w", err)
	}
	defer buf.Close()
	if err := r.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("set ocr image: %w", err)
	}

	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	text = strings.ToUpper(strings.Join(strings.Fields(text), ""))
	return text, nil
}

// Close releases the Tesseract client.
func (r *TesseractReader) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// CrossCheck reruns a recognized mark through the reader and reports whether
// the two recognizers agree. Reader errors are returned, not treated as
// disagreement.
func CrossCheck(gray gocv.Mat, res MatchResult, reader Reader) (bool, string, error) {
	if reader == nil || !res.Recognized || len(res.Chars) == 0 {
		return true, "", nil
	}

	union := res.Chars[0].Bounds
	for _, c := range res.Chars[1:] {
		union = union.Union(c.Bounds)
	}
	union = union.Inflate(4, 4, 4, 4).ClampTo(gray.Cols(), gray.Rows())
	if !union.Valid() {
		return true, "", nil
	}

	mark := gray.Region(union.ToImage())
	defer mark.Close()
	text, err := reader.Read(mark)
	if err != nil {
		return false, "", err
	}
	return text == res.Sequence, text, nil
}
