package cache

// Op is one buffered write of a transaction
type Op struct {
	Key    string
	Value  string
	Delete bool
}

// WriteBuffer records transaction writes in order for drivers to apply on commit
type WriteBuffer struct {
	Ops []Op
}

func (b *WriteBuffer) Set(key, value string) {
	b.Ops = append(b.Ops, Op{Key: key, Value: value})
}

func (b *WriteBuffer) Delete(key string) {
	b.Ops = append(b.Ops, Op{Key: key, Delete: true})
}

// Empty reports whether the transaction wrote nothing
func (b *WriteBuffer) Empty() bool {
	return len(b.Ops) == 0
}
