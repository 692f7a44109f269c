package models

// Document is the structured body of a post as stored on chain, a tree
// of typed nodes in the Decentium document format.
type Document struct {
	Type    string `json:"type"`
	Content []Node `json:"content,omitempty"`
}

// Node is one node of a post document. Leaf text nodes carry Text and
// optional Marks; block nodes carry Content and optional Attrs.
type Node struct {
	Type    string     `json:"type"`
	Attrs   *NodeAttrs `json:"attrs,omitempty"`
	Content []Node     `json:"content,omitempty"`
	Marks   []Mark     `json:"marks,omitempty"`
	Text    string     `json:"text,omitempty"`
}

// NodeAttrs holds the union of attributes used by the node types the
// contract accepts.
type NodeAttrs struct {
	Level int    `json:"level,omitempty"` // heading
	Src   string `json:"src,omitempty"`   // image
	Alt   string `json:"alt,omitempty"`   // image
	Title string `json:"title,omitempty"` // image, link
	Order int    `json:"order,omitempty"` // ordered_list
}

// Mark annotates a text node with inline formatting.
type Mark struct {
	Type  string     `json:"type"`
	Attrs *MarkAttrs `json:"attrs,omitempty"`
}

// MarkAttrs holds link mark attributes.
type MarkAttrs struct {
	Href  string `json:"href,omitempty"`
	Title string `json:"title,omitempty"`
}
