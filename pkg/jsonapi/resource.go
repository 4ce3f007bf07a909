package jsonapi

// ResourceBuilder assembles a Resource. Attributes named id or type are
// dropped since JSON:API keeps those at the top level.
type ResourceBuilder struct {
	typ, id string
	attrs   map[string]any
	meta    Meta
	self    string
}

func NewResource(resourceType, id string) *ResourceBuilder {
	return &ResourceBuilder{typ: resourceType, id: id, attrs: make(map[string]any)}
}

func (b *ResourceBuilder) Attr(key string, value any) *ResourceBuilder {
	if key != "id" && key != "type" {
		b.attrs[key] = value
	}
	return b
}

// AttrIf sets key only when cond holds. Used for optional members such
// as an upgrade hint or an unbounded band's upper limit.
func (b *ResourceBuilder) AttrIf(cond bool, key string, value any) *ResourceBuilder {
	if cond {
		b.Attr(key, value)
	}
	return b
}

func (b *ResourceBuilder) Attrs(attrs map[string]any) *ResourceBuilder {
	for k, v := range attrs {
		b.Attr(k, v)
	}
	return b
}

func (b *ResourceBuilder) Meta(key string, value any) *ResourceBuilder {
	if b.meta == nil {
		b.meta = make(Meta)
	}
	b.meta[key] = value
	return b
}

// Link sets the resource's self link.
func (b *ResourceBuilder) Link(self string) *ResourceBuilder {
	b.self = self
	return b
}

func (b *ResourceBuilder) Build() Resource {
	r := Resource{Type: b.typ, ID: b.id, Attributes: b.attrs, Meta: b.meta}
	if b.self != "" {
		r.Links = &Links{Self: b.self}
	}
	return r
}
