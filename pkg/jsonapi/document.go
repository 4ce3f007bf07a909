package jsonapi

// DocumentBuilder assembles a top-level Document. Data and Errors are
// mutually exclusive; setting errors drops any data.
type DocumentBuilder struct {
	doc Document
}

func NewDocument() *DocumentBuilder {
	return &DocumentBuilder{}
}

func (b *DocumentBuilder) DataResource(r Resource) *DocumentBuilder {
	b.doc.Data = r
	return b
}

// DataCollection sets a resource list as primary data. A nil list still
// encodes as [] so clients can range over it.
func (b *DocumentBuilder) DataCollection(resources []Resource) *DocumentBuilder {
	if resources == nil {
		resources = make([]Resource, 0)
	}
	b.doc.Data = resources
	return b
}

func (b *DocumentBuilder) Errors(errs ...Error) *DocumentBuilder {
	b.doc.Data, b.doc.Errors = nil, errs
	return b
}

func (b *DocumentBuilder) Meta(key string, value any) *DocumentBuilder {
	return b.MetaAll(Meta{key: value})
}

func (b *DocumentBuilder) MetaAll(meta Meta) *DocumentBuilder {
	if len(meta) == 0 {
		return b
	}
	if b.doc.Meta == nil {
		b.doc.Meta = make(Meta, len(meta))
	}
	for k, v := range meta {
		b.doc.Meta[k] = v
	}
	return b
}

func (b *DocumentBuilder) Self(url string) *DocumentBuilder {
	b.doc.Links = &Links{Self: url}
	return b
}

// JSONAPI adds the version object.
func (b *DocumentBuilder) JSONAPI() *DocumentBuilder {
	b.doc.JSONAPI = &JSONAPI{Version: Version}
	return b
}

func (b *DocumentBuilder) Build() Document {
	return b.doc
}

func NewSingleResourceDocument(r Resource) Document {
	return NewDocument().DataResource(r).Build()
}

func NewCollectionDocument(resources []Resource, meta Meta) Document {
	return NewDocument().DataCollection(resources).MetaAll(meta).Build()
}

func NewErrorDocument(errs ...Error) Document {
	return NewDocument().Errors(errs...).Build()
}
