// Package page classifies fetched documents into typed page roles.
//
// A Table holds an ordered list of rules. Each rule pairs a matcher (a URL
// regular expression, optionally narrowed by a content predicate, or a pure
// content sniffer) with the constructor of the role it produces. The first
// matching rule wins; when nothing matches classification fails.
package page

// Page is a typed view of exactly one fetched document. Roles add behaviour
// (listing accounts, building the next navigation) on top of it and are
// discarded on the next navigation.
type Page interface {
	Kind() Kind
	Document() *Document
	// Forms lists the forms the role lets callers submit.
	Forms() []*Form
}

// Base implements Page and is embedded by every concrete role.
type Base struct {
	kind Kind
	doc  *Document
}

func NewBase(kind Kind, doc *Document) Base {
	return Base{kind: kind, doc: doc}
}

func (b Base) Kind() Kind          { return b.kind }
func (b Base) Document() *Document { return b.doc }
func (b Base) Forms() []*Form      { return b.doc.Forms() }

// Constructor builds a role around a classified document.
type Constructor func(Base) Page

// Generic is the constructor for roles that need no behaviour of their own.
func Generic(b Base) Page { return b }
