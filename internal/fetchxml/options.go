package fetchxml

// Option configures ToFetchXML and Compile.
type Option func(*config)

type config struct {
	primaryKeys map[string]string
	indent      string
}

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithPrimaryKeys overrides primary-key inference for count() without a
// field. Keys are entity logical names, values the primary-key attribute.
// Entities without an override use "<entity>id".
func WithPrimaryKeys(keys map[string]string) Option {
	return func(c *config) {
		if len(keys) == 0 {
			return
		}
		if c.primaryKeys == nil {
			c.primaryKeys = make(map[string]string, len(keys))
		}
		for entity, pk := range keys {
			c.primaryKeys[entity] = pk
		}
	}
}

// WithIndent renders every element on its own line, nested with indent.
// The default is a single-line document.
func WithIndent(indent string) Option {
	return func(c *config) {
		c.indent = indent
	}
}

func (c *config) primaryKey(entity string) string {
	if pk, ok := c.primaryKeys[entity]; ok && pk != "" {
		return pk
	}
	return entity + "id"
}
