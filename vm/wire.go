package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Code image serialization
// ---------------------------------------------------------------------------

// A code image is a serialized Code graph: a fixed header (magic and
// format version) followed by a canonical CBOR payload. Only data
// constants travel on the wire: Nil, Integer and String. Code values
// belong in the nested-code table, Function and Userdata values are
// runtime-only.

// ImageMagic identifies a Quill code image file.
var ImageMagic = [4]byte{'Q', 'L', 'B', 'C'}

// ImageVersion is the current code image format version.
const ImageVersion uint32 = 1

// imageHeaderSize is magic(4) + version(4).
const imageHeaderSize = 8

// Code image errors.
var (
	ErrInvalidMagic    = errors.New("invalid magic number: expected QLBC")
	ErrVersionMismatch = errors.New("code image version mismatch")
	ErrCorruptImage    = errors.New("corrupt code image")
)

// cborEncMode uses canonical options for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Wire representation. Constants carry an explicit kind tag so that a
// nil constant and a zero integer stay distinct.
const (
	wireNil     uint8 = 0
	wireInteger uint8 = 1
	wireString  uint8 = 2
)

type constantWire struct {
	Kind uint8  `cbor:"kind"`
	Int  int32  `cbor:"int,omitempty"`
	Str  string `cbor:"str,omitempty"`
}

type codeWire struct {
	Params    int            `cbor:"params"`
	Upvalues  int            `cbor:"upvalues"`
	Constants []constantWire `cbor:"constants"`
	Instrs    []byte         `cbor:"instrs"`
	Codes     []*codeWire    `cbor:"codes,omitempty"`
}

// EncodeCode serializes a Code graph to CBOR bytes (payload only, no
// image header).
func EncodeCode(code *Code) ([]byte, error) {
	w, err := codeToWire(code)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// DecodeCode deserializes a Code graph from CBOR bytes.
func DecodeCode(data []byte) (*Code, error) {
	var w codeWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("vm: unmarshal code image: %w", err)
	}
	return codeFromWire(&w)
}

func codeToWire(code *Code) (*codeWire, error) {
	w := &codeWire{
		Params:    code.Params,
		Upvalues:  code.Upvalues,
		Instrs:    code.Instrs,
		Constants: make([]constantWire, len(code.Constants)),
	}
	for i, c := range code.Constants {
		switch c.Kind() {
		case KindNil:
			w.Constants[i] = constantWire{Kind: wireNil}
		case KindInteger:
			w.Constants[i] = constantWire{Kind: wireInteger, Int: c.Int()}
		case KindString:
			w.Constants[i] = constantWire{Kind: wireString, Str: c.Str()}
		default:
			return nil, fmt.Errorf("vm: constant %d: %s is not serializable", i, c.Kind())
		}
	}
	for _, nested := range code.Codes {
		nw, err := codeToWire(nested)
		if err != nil {
			return nil, err
		}
		w.Codes = append(w.Codes, nw)
	}
	return w, nil
}

func codeFromWire(w *codeWire) (*Code, error) {
	code := &Code{
		Params:    w.Params,
		Upvalues:  w.Upvalues,
		Instrs:    w.Instrs,
		Constants: make([]Value, len(w.Constants)),
	}
	for i, c := range w.Constants {
		switch c.Kind {
		case wireNil:
			code.Constants[i] = Nil
		case wireInteger:
			code.Constants[i] = FromInt(c.Int)
		case wireString:
			code.Constants[i] = FromString(c.Str)
		default:
			return nil, fmt.Errorf("vm: constant %d has unknown wire kind %d: %w", i, c.Kind, ErrCorruptImage)
		}
	}
	for _, nw := range w.Codes {
		nested, err := codeFromWire(nw)
		if err != nil {
			return nil, err
		}
		code.Codes = append(code.Codes, nested)
	}
	return code, nil
}

// ---------------------------------------------------------------------------
// Image files
// ---------------------------------------------------------------------------

// MarshalImage serializes a Code graph to a complete code image,
// header included.
func MarshalImage(code *Code) ([]byte, error) {
	payload, err := EncodeCode(code)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, imageHeaderSize, imageHeaderSize+len(payload))
	copy(buf[0:4], ImageMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], ImageVersion)
	return append(buf, payload...), nil
}

// UnmarshalImage deserializes a complete code image, validating the
// header.
func UnmarshalImage(data []byte) (*Code, error) {
	if len(data) < imageHeaderSize {
		return nil, fmt.Errorf("vm: image is %d bytes, want at least %d: %w", len(data), imageHeaderSize, ErrCorruptImage)
	}
	if [4]byte(data[0:4]) != ImageMagic {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != ImageVersion {
		return nil, fmt.Errorf("vm: image version %d, want %d: %w", v, ImageVersion, ErrVersionMismatch)
	}
	return DecodeCode(data[imageHeaderSize:])
}

// WriteCodeFile writes a code image to path.
func WriteCodeFile(path string, code *Code) error {
	data, err := MarshalImage(code)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadCodeFile reads a code image from path.
func ReadCodeFile(path string) (*Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalImage(data)
}
