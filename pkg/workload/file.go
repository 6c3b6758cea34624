// Workloads can be saved and replayed later, so the same traffic can be measured against different cache settings.
// The encoding follows the file extension: ".msgpack" or ".cbor".

package workload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrUnknownFormat = errors.New("unknown workload file format")

// File is a self-contained workload: the initial array and the operations to run on it.
type File struct {
	Array []int64 `msgpack:"array" cbor:"array"`
	Ops   []Op    `msgpack:"ops" cbor:"ops"`
}

type codec interface {
	marshal(v any) ([]byte, error)
	unmarshal(data []byte, v any) error
}

type msgpackCodec struct{}

func (msgpackCodec) marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// cborCodec uses core deterministic encoding so equal workloads produce equal files.
type cborCodec struct {
	enc cbor.EncMode
}

func newCBORCodec() (cborCodec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return cborCodec{}, fmt.Errorf("failed to build cbor encoder: %w", err)
	}
	return cborCodec{enc: enc}, nil
}

func (c cborCodec) marshal(v any) ([]byte, error)    { return c.enc.Marshal(v) }
func (cborCodec) unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

// codecFor picks the codec matching the extension of `path`.
func codecFor(path string) (codec, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".msgpack", ".mp":
		return msgpackCodec{}, nil
	case ".cbor":
		return newCBORCodec()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

// Save writes `file` to `path`.
func Save(path string, file File) error {
	c, err := codecFor(path)
	if err != nil {
		return err
	}
	data, err := c.marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode workload: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write workload file: %w", err)
	}
	return nil
}

// Load reads a workload previously written by Save.
func Load(path string) (File, error) {
	c, err := codecFor(path)
	if err != nil {
		return File{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read workload file: %w", err)
	}
	var file File
	if err := c.unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("failed to decode workload: %w", err)
	}
	return file, nil
}
