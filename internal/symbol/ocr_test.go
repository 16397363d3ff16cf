package symbol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"chipaoi/pkg/geometry"
)

// stubReader returns a canned sequence and records what it was shown.
type stubReader struct {
	text    string
	err     error
	sawCols int
	sawRows int
}

func (s *stubReader) Read(mark gocv.Mat) (string, error) {
	s.sawCols = mark.Cols()
	s.sawRows = mark.Rows()
	return s.text, s.err
}

func (s *stubReader) Close() error { return nil }

func recognizedMark() MatchResult {
	return MatchResult{
		Recognized: true,
		Sequence:   "IH",
		Chars: []CharMatch{
			{Name: "I", Score: 95, Bounds: geometry.NewRect(28, 23, 10, 24)},
			{Name: "H", Score: 92, Bounds: geometry.NewRect(68, 30, 24, 10)},
		},
	}
}

func TestCrossCheckAgreement(t *testing.T) {
	m, _ := markScene()
	defer m.Close()

	reader := &stubReader{text: "IH"}
	agree, text, err := CrossCheck(m, recognizedMark(), reader)
	require.NoError(t, err)
	require.True(t, agree)
	require.Equal(t, "IH", text)

	// The reader must be shown the mark region, not the whole frame.
	require.Less(t, reader.sawCols, m.Cols())
	require.Less(t, reader.sawRows, m.Rows())
	require.GreaterOrEqual(t, reader.sawCols, 64, "crop must span both glyphs")
}

func TestCrossCheckDisagreement(t *testing.T) {
	m, _ := markScene()
	defer m.Close()

	reader := &stubReader{text: "1H"}
	agree, text, err := CrossCheck(m, recognizedMark(), reader)
	require.NoError(t, err)
	require.False(t, agree)
	require.Equal(t, "1H", text)
}

func TestCrossCheckReaderError(t *testing.T) {
	m, _ := markScene()
	defer m.Close()

	reader := &stubReader{err: fmt.Errorf("engine unavailable")}
	_, _, err := CrossCheck(m, recognizedMark(), reader)
	require.Error(t, err)
}

func TestCrossCheckNoReaderOrNoChars(t *testing.T) {
	m, _ := markScene()
	defer m.Close()

	agree, _, err := CrossCheck(m, recognizedMark(), nil)
	require.NoError(t, err)
	require.True(t, agree, "no reader means nothing to disagree with")

	agree, _, err = CrossCheck(m, MatchResult{Recognized: true}, &stubReader{text: "X"})
	require.NoError(t, err)
	require.True(t, agree)
}
