package scene

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

// Format selects the on-disk encoding of a Document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = eris.New("unknown scene format")

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", eris.Wrapf(ErrUnknownFormat, "%s", path)
	}
}

func Marshal(doc *Document, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return nil, eris.Wrapf(ErrUnknownFormat, "%q", f)
	}
}

func Unmarshal(data []byte, f Format) (*Document, error) {
	doc := &Document{}
	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, doc)
	default:
		return nil, eris.Wrapf(ErrUnknownFormat, "%q", f)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "decode %s scene", f)
	}
	return doc, nil
}

// LoadFile reads a scene document, choosing the format by extension.
func LoadFile(path string) (*Document, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read scene %s", path)
	}
	return Unmarshal(data, f)
}

// SaveFile writes doc to path, choosing the format by extension.
func SaveFile(path string, doc *Document) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Marshal(doc, f)
	if err != nil {
		return eris.Wrapf(err, "encode scene %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write scene %s", path)
	}
	return nil
}

// Digest is the hex BLAKE2b-256 of the compact JSON form of doc. Map keys are
// encoded in sorted order, so equal scenes have equal digests.
func Digest(doc *Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", eris.Wrap(err, "digest scene")
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
