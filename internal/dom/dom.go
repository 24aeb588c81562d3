// Package dom defines the page-query contract the resolution pipeline runs against.
//
// The pipeline never touches a concrete document model. Implementations only need
// selector queries, attribute reads, a visibility estimate, a text-node walk, the
// handful of writes the badge performs, and a mutation stream.
package dom

// Mutation types reported in MutationRecord.Type.
const (
	MutationChildList  = "childList"
	MutationAttributes = "attributes"
)

// ShadowHostAttr marks an element whose subtree behaves like a closed shadow root:
// it is skipped by text extraction, text walks and selector queries.
const ShadowHostAttr = "data-shadow-root"

// Element is a single node of the page.
type Element interface {
	// Tag returns the lowercase tag name.
	Tag() string
	// Text returns the rendered text of the subtree with whitespace collapsed.
	Text() string
	Attr(name string) (string, bool)
	// Parent returns nil for the document root.
	Parent() Element
	// Closest returns the nearest ancestor (or the element itself) matching selector.
	Closest(selector string) Element
	// QuerySelector searches descendants only.
	QuerySelector(selector string) (Element, error)
	Visible() bool
	// Contains reports whether other is the element itself or one of its descendants.
	Contains(other Element) bool
	Same(other Element) bool
	OuterHTML() string
}

// TextVisitor receives each text node with its parent element. Returning false stops the walk.
type TextVisitor func(text string, parent Element) bool

// MutationRecord mirrors a browser MutationRecord.
type MutationRecord struct {
	Type    string
	Target  Element
	Added   []Element
	Removed []Element
}

// Observer receives batches of mutation records.
type Observer func(records []MutationRecord)

// Document is the page the pipeline inspects and decorates.
type Document interface {
	// Body returns nil when the document has no body element.
	Body() Element
	QuerySelector(selector string) (Element, error)
	GetElementByID(id string) Element
	WalkText(visit TextVisitor)

	CreateElement(tag string, attrs map[string]string, text string) Element
	AppendChild(parent, child Element)
	Remove(el Element)

	// Observe registers an observer for mutations under the body. The returned
	// function unregisters it.
	Observe(fn Observer) func()
}
