package hdf5

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/robert-malhotra/go-omx/internal/message"
	"github.com/robert-malhotra/go-omx/internal/object"
)

func (g *Group) checkWritable() error {
	if g.file.closed {
		return ErrClosed
	}
	if !g.file.writable {
		return ErrNotWritable
	}
	return nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return nil
}

// CreateGroup creates a new, empty subgroup with the given name.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkWritable(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	if g.hasLink(name) {
		return nil, fmt.Errorf("%w: %s", ErrExists, joinPath(g.path, name))
	}

	addr, err := g.file.writeHeader(object.GroupMessages(nil), object.MinGroupChunkSize)
	if err != nil {
		return nil, fmt.Errorf("writing group header: %w", err)
	}
	if err := g.setLink(name, addr); err != nil {
		return nil, fmt.Errorf("adding link to parent: %w", err)
	}

	header, err := object.Read(g.file.reader, addr)
	if err != nil {
		return nil, err
	}
	childPath := joinPath(g.path, name)
	g.file.evict(childPath)
	return g.file.cacheGroup(&Group{file: g.file, path: childPath, header: header, addr: addr}), nil
}

// Unlink removes the member called name. The object itself stays in the
// file as unreachable space.
func (g *Group) Unlink(name string) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	links, err := g.linkMessages()
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(slices.Clone(links), func(l *message.Link) bool { return l.Name == name })
	if len(kept) == len(links) {
		return fmt.Errorf("%w: %s", ErrNotFound, joinPath(g.path, name))
	}
	g.file.evict(joinPath(g.path, name))
	return g.rewrite(kept, g.attributeMessages())
}

// SetAttrs replaces every attribute of the group with attrs.
func (g *Group) SetAttrs(attrs map[string]any) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	msgs, err := attributeMessages(attrs)
	if err != nil {
		return err
	}
	links, err := g.linkMessages()
	if err != nil {
		return err
	}
	return g.rewrite(links, msgs)
}

// SetAttr adds or replaces a single attribute.
func (g *Group) SetAttr(name string, value any) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	msg, err := createAttributeMessage(name, value)
	if err != nil {
		return fmt.Errorf("creating attribute %q: %w", name, err)
	}
	attrs := slices.DeleteFunc(g.attributeMessages(), func(a *message.Attribute) bool { return a.Name == name })
	links, err := g.linkMessages()
	if err != nil {
		return err
	}
	return g.rewrite(links, append(attrs, msg))
}

func (g *Group) hasLink(name string) bool {
	links, err := g.linkMessages()
	if err != nil {
		return false
	}
	return slices.ContainsFunc(links, func(l *message.Link) bool { return l.Name == name })
}

func (g *Group) attributeMessages() []*message.Attribute {
	var out []*message.Attribute
	for _, msg := range g.header.GetMessages(message.TypeAttribute) {
		out = append(out, msg.(*message.Attribute))
	}
	return out
}

// setLink points name at addr, replacing an existing link of that name.
func (g *Group) setLink(name string, addr uint64) error {
	links, err := g.linkMessages()
	if err != nil {
		return err
	}
	out := make([]*message.Link, 0, len(links)+1)
	replaced := false
	for _, l := range links {
		if l.Name == name {
			out = append(out, message.NewHardLink(name, addr))
			replaced = true
			continue
		}
		out = append(out, l)
	}
	if !replaced {
		out = append(out, message.NewHardLink(name, addr))
	}
	return g.rewrite(out, g.attributeMessages())
}

// rewrite writes a fresh header for g and relinks it in its parent. The
// change propagates up to the root, whose new address lands in the
// superblock on the next Flush.
func (g *Group) rewrite(links []*message.Link, attrs []*message.Attribute) error {
	msgs := object.GroupMessages(links)
	for _, a := range attrs {
		msgs = append(msgs, a)
	}

	addr, err := g.file.writeHeader(msgs, object.MinGroupChunkSize)
	if err != nil {
		return fmt.Errorf("writing header of %s: %w", g.path, err)
	}
	header, err := object.Read(g.file.reader, addr)
	if err != nil {
		return fmt.Errorf("rereading header of %s: %w", g.path, err)
	}
	g.header, g.addr = header, addr

	if g.path == "/" {
		g.file.superblock.RootGroupAddress = addr
		return nil
	}
	parent, err := g.file.groupAt(path.Dir(g.path))
	if err != nil {
		return fmt.Errorf("locating parent of %s: %w", g.path, err)
	}
	return parent.setLink(path.Base(g.path), addr)
}

// writeHeader allocates space for a v2 object header and writes it.
func (f *File) writeHeader(msgs []message.Message, minChunk int) (uint64, error) {
	size := object.Size(f.writer, msgs, minChunk)
	addr := f.allocate(int64(size))
	if _, err := object.Write(f.writer.At(int64(addr)), msgs, minChunk); err != nil {
		return 0, err
	}
	return addr, nil
}

// groupAt returns the cached group at p, opening it if needed.
func (f *File) groupAt(p string) (*Group, error) {
	if p == "/" || p == "." || p == "" {
		return f.root, nil
	}
	if g, ok := f.groups[p]; ok {
		return g, nil
	}
	return f.root.OpenGroup(p)
}

// evict drops p and everything below it from the group cache.
func (f *File) evict(p string) {
	for key := range f.groups {
		if key == p || strings.HasPrefix(key, p+"/") {
			delete(f.groups, key)
		}
	}
}
