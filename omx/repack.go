package omx

import (
	"errors"

	"github.com/google/uuid"
)

// Repack copies the file at src into a new file at dst: root attributes,
// matrices and lookups. The copy holds no space left behind by earlier
// deletions.
func Repack(src, dst string, opts ...Option) (err error) {
	in := New(src, opts...)
	if err := in.OpenReadOnly(); err != nil {
		return err
	}
	defer func() { err = joinErrors(err, in.Close()) }()

	shape, err := in.Shape()
	if err != nil {
		return err
	}
	out := New(dst, opts...)
	if err := out.OpenNew(shape[:]); err != nil {
		return err
	}
	if err := copyInto(in, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyInto(in, out *File) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, k := range in.attrs.AttributeKeys() {
		if reserved(k) {
			continue
		}
		v, _ := in.attrs.Attribute(k)
		if err := out.SetAttribute(k, v); err != nil {
			return err
		}
	}
	for _, name := range sortedNames(in.matrices) {
		if err := out.AddMatrix(in.matrices[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedNames(in.lookups) {
		if err := out.AddLookup(in.lookups[name]); err != nil {
			return err
		}
	}
	return nil
}

// RepackInPlace repacks path into a temporary file beside it and then
// renames that over path. The temporary file is removed on failure.
func RepackInPlace(path string, opts ...Option) error {
	backend := New(path, opts...).backend
	tmp := path + ".repack-" + uuid.NewString()
	if err := Repack(path, tmp, opts...); err != nil {
		if ok, _ := backend.Exists(tmp); ok {
			backend.Remove(tmp)
		}
		return err
	}
	if err := backend.Rename(tmp, path); err != nil {
		backend.Remove(tmp)
		return ErrorBackingStore("rename", tmp, err)
	}
	return nil
}

// joinErrors returns whichever of a and b is set, or both joined.
func joinErrors(a, b error) error {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return errors.Join(a, b)
	}
}
