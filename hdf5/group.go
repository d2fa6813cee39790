package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-omx/internal/btree"
	"github.com/robert-malhotra/go-omx/internal/heap"
	"github.com/robert-malhotra/go-omx/internal/message"
	"github.com/robert-malhotra/go-omx/internal/object"
)

// LinkKind classifies a group member.
type LinkKind uint8

const (
	HardLink LinkKind = iota
	SoftLink
	ExternalLink
)

func (k LinkKind) String() string {
	switch k {
	case HardLink:
		return "hard"
	case SoftLink:
		return "soft"
	case ExternalLink:
		return "external"
	default:
		return fmt.Sprintf("LinkKind(%d)", uint8(k))
	}
}

// Link describes one member of a group.
type Link struct {
	Name    string
	Kind    LinkKind
	Address uint64 // hard links only
	Target  string // soft link path, or "file:path" for external links
}

// ObjectKind classifies the object a hard link points at.
type ObjectKind uint8

const (
	KindUnknown ObjectKind = iota
	KindGroup
	KindDataset
	KindDatatype
)

func (k ObjectKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindDataset:
		return "dataset"
	case KindDatatype:
		return "datatype"
	default:
		return "unknown"
	}
}

func classify(h *object.Header) ObjectKind {
	switch {
	case h.GetMessage(message.TypeDataspace) != nil && h.GetMessage(message.TypeDataLayout) != nil:
		return KindDataset
	case h.GetMessage(message.TypeSymbolTable) != nil,
		h.GetMessage(message.TypeLinkInfo) != nil,
		h.GetMessage(message.TypeGroupInfo) != nil,
		h.GetMessage(message.TypeLink) != nil:
		return KindGroup
	case h.GetMessage(message.TypeDatatype) != nil:
		return KindDatatype
	default:
		return KindUnknown
	}
}

// Group represents an HDF5 group.
type Group struct {
	file   *File
	path   string
	header *object.Header
	addr   uint64
}

func (g *Group) Path() string { return g.path }

// Links lists the group's members in storage order.
func (g *Group) Links() ([]Link, error) {
	msgs, err := g.linkMessages()
	if err != nil {
		return nil, err
	}
	links := make([]Link, 0, len(msgs))
	for _, m := range msgs {
		l := Link{Name: m.Name}
		switch {
		case m.IsHard():
			l.Kind, l.Address = HardLink, m.ObjectAddress
		case m.IsSoft():
			l.Kind, l.Target = SoftLink, m.SoftLinkValue
		case m.IsExternal():
			l.Kind, l.Target = ExternalLink, m.ExternalFile+":"+m.ExternalPath
		default:
			return nil, fmt.Errorf("%w: link type %d", ErrUnsupported, m.LinkType)
		}
		links = append(links, l)
	}
	return links, nil
}

// linkMessages returns the group's links as v2 link messages. Symbol
// table entries of v1 groups are converted, so writers can re-emit them.
func (g *Group) linkMessages() ([]*message.Link, error) {
	var links []*message.Link
	for _, msg := range g.header.GetMessages(message.TypeLink) {
		links = append(links, msg.(*message.Link))
	}
	if len(links) > 0 {
		return links, nil
	}

	symTable := g.symbolTable()
	if symTable == nil {
		return nil, nil
	}
	entries, err := g.readSymbolTable(symTable)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.LinkType == 1 {
			links = append(links, message.NewSoftLink(e.Name, e.SoftLinkValue))
			continue
		}
		links = append(links, message.NewHardLink(e.Name, e.ObjectAddress))
	}
	return links, nil
}

func (g *Group) symbolTable() *message.SymbolTable {
	if msg := g.header.GetMessage(message.TypeSymbolTable); msg != nil {
		return msg.(*message.SymbolTable)
	}
	// Root groups of v0/v1 files may only be described by the superblock
	// scratch pad. A rewritten root is a v2 header and never falls back.
	sb := g.file.superblock
	if g.path == "/" && g.header.Version == 1 && sb.RootGroupBTreeAddress != 0 {
		return &message.SymbolTable{
			BTreeAddress:     sb.RootGroupBTreeAddress,
			LocalHeapAddress: sb.RootGroupLocalHeapAddress,
		}
	}
	return nil
}

func (g *Group) readSymbolTable(symTable *message.SymbolTable) ([]btree.GroupEntry, error) {
	localHeap, err := heap.ReadLocalHeap(g.file.reader, symTable.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("reading local heap: %w", err)
	}
	entries, err := btree.ReadGroupEntries(g.file.reader, symTable.BTreeAddress, localHeap)
	if err != nil {
		return nil, fmt.Errorf("reading B-tree: %w", err)
	}
	return entries, nil
}

// Kind reports what a hard link target is.
func (g *Group) Kind(l Link) (ObjectKind, error) {
	if l.Kind != HardLink {
		return KindUnknown, fmt.Errorf("%w: %s link %q", ErrUnsupported, l.Kind, l.Name)
	}
	header, err := object.Read(g.file.reader, l.Address)
	if err != nil {
		return KindUnknown, fmt.Errorf("reading object header of %q: %w", l.Name, err)
	}
	return classify(header), nil
}

// OpenGroup opens the group at a path relative to g.
func (g *Group) OpenGroup(relativePath string) (*Group, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}
	group, ok := obj.(*Group)
	if !ok {
		return nil, ErrNotGroup
	}
	return group, nil
}

// OpenDataset opens the dataset at a path relative to g.
func (g *Group) OpenDataset(relativePath string) (*Dataset, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}
	dataset, ok := obj.(*Dataset)
	if !ok {
		return nil, ErrNotDataset
	}
	return dataset, nil
}

func (g *Group) open(relativePath string) (any, error) {
	parts := splitPath(relativePath)
	if len(parts) == 0 {
		return g, nil
	}

	current := g
	visited := make(map[string]bool)
	for i, name := range parts {
		addr, err := current.resolve(name, visited)
		if err != nil {
			return nil, fmt.Errorf("finding %q: %w", name, err)
		}
		header, err := object.Read(g.file.reader, addr)
		if err != nil {
			return nil, fmt.Errorf("reading object header: %w", err)
		}
		fullPath := joinPath(current.path, name)
		kind := classify(header)

		if i == len(parts)-1 {
			switch kind {
			case KindDataset:
				return newDataset(g.file, fullPath, header)
			case KindGroup:
				return g.file.cacheGroup(&Group{file: g.file, path: fullPath, header: header, addr: addr}), nil
			default:
				return nil, fmt.Errorf("%w: %s is a %s", ErrUnsupported, fullPath, kind)
			}
		}
		if kind != KindGroup {
			return nil, fmt.Errorf("%w: %s", ErrNotGroup, fullPath)
		}
		current = g.file.cacheGroup(&Group{file: g.file, path: fullPath, header: header, addr: addr})
	}
	return current, nil
}

// resolve finds the object address a member name refers to, following
// soft links within the file.
func (g *Group) resolve(name string, visited map[string]bool) (uint64, error) {
	links, err := g.Links()
	if err != nil {
		return 0, err
	}
	for _, l := range links {
		if l.Name != name {
			continue
		}
		switch l.Kind {
		case HardLink:
			return l.Address, nil
		case SoftLink:
			if len(visited) >= MaxLinkDepth {
				return 0, ErrLinkDepth
			}
			if visited[l.Target] {
				return 0, fmt.Errorf("circular soft link detected: %s", l.Target)
			}
			visited[l.Target] = true
			return g.file.resolveAbsolute(l.Target, visited)
		default:
			return 0, fmt.Errorf("%w: external link %q", ErrUnsupported, name)
		}
	}
	return 0, ErrNotFound
}

// Attrs lists the group's attribute names in header order.
func (g *Group) Attrs() []string { return attrNames(g.header) }

// Attr returns the named attribute, or nil.
func (g *Group) Attr(name string) *Attribute { return findAttr(g.header, name, g.file) }

// Attributes decodes every attribute of the group.
func (g *Group) Attributes() (map[string]any, error) { return decodeAttrs(g.header, g.file) }
