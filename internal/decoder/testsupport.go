package decoder

// SetMetaForTest wires the Kind and LogMeta of an event constructed as a
// bare struct literal in another package's tests. Production code always
// goes through build(), which sets both at construction time; this exists
// only so handlers tests can build fixtures without a real log to decode.
func (b *base) SetMetaForTest(kind Kind, meta LogMeta) {
	b.kind = kind
	b.meta = meta
}
