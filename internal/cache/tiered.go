package cache

import "errors"

// Tiered puts a fast front store before a persistent back store. Back hits
// are promoted to the front.
type Tiered struct {
	Front Store
	Back  Store
}

func (t *Tiered) Get(fp Fingerprint) (*Entry, bool, error) {
	if e, ok, err := t.Front.Get(fp); err == nil && ok {
		return e, true, nil
	}
	e, ok, err := t.Back.Get(fp)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := t.Front.Put(fp, e); err != nil {
		return e, true, err
	}
	return e, true, nil
}

func (t *Tiered) Put(fp Fingerprint, e *Entry) error {
	return errors.Join(t.Front.Put(fp, e), t.Back.Put(fp, e))
}

// Len reports the size of the back store, which holds every entry.
func (t *Tiered) Len() int { return t.Back.Len() }

func (t *Tiered) Close() error {
	return errors.Join(t.Front.Close(), t.Back.Close())
}
