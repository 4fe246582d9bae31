package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// ErrMissingState is returned when a step runs before the one that
// produces its input.
var ErrMissingState = errors.New("pipeline: state file missing")

// writeJSON replaces path atomically with the indented encoding of v.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrapf(err, "encoding %s", filepath.Base(path))
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "replacing %s", path)
	}
	return nil
}

// readJSON decodes path into v. A missing file names the step that
// produces it.
func readJSON(path string, v any, producer Step) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return errors.WithHintf(errors.Wrapf(ErrMissingState, "%s", path), "run the %s step first", producer)
	}
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return nil
}
