package encoding_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/MrJamesThe3rd/cafenet/internal/encoding"
)

func TestDetect_UTF8Passthrough(t *testing.T) {
	input := "نام,تعداد,قیمت خرید,قیمت فروش\nقهوه,10,1000,1500\n"

	r, charset, err := encoding.Detect(bytes.NewReader([]byte(input)))
	require.NoError(t, err)
	assert.Equal(t, encoding.UTF8, charset)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, input, string(got))
}

func TestDetect_UTF8BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,quantity\n")...)

	r, charset, err := encoding.Detect(bytes.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, encoding.UTF8, charset)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "name,quantity\n", string(got))
}

func TestDetect_UTF16LE(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()

	input, err := enc.String("name,quantity\nچای,4\n")
	require.NoError(t, err)

	r, charset, err := encoding.Detect(bytes.NewReader([]byte(input)))
	require.NoError(t, err)
	assert.Equal(t, encoding.UTF16LE, charset)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "name,quantity\nچای,4\n", string(got))
}

func TestDetect_NonUTF8(t *testing.T) {
	// "Café;12\n" in Windows-1252, é = 0xE9.
	latin1 := []byte{'C', 'a', 'f', 0xE9, ';', '1', '2', '\n'}

	r, charset, err := encoding.Detect(bytes.NewReader(latin1))
	require.NoError(t, err)
	assert.NotEqual(t, encoding.UTF8, charset)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.NotContains(t, string(got), "�")
}

func TestNewDecodingReader(t *testing.T) {
	want := "نام,تعداد\nقهوه,10\n"

	raw, err := charmap.Windows1256.NewEncoder().String(want)
	require.NoError(t, err)

	r, err := encoding.NewDecodingReader(bytes.NewReader([]byte(raw)), "Windows-1256")
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))

	_, err = encoding.NewDecodingReader(bytes.NewReader(nil), "ebcdic")
	assert.Error(t, err)
}
