package tensorspec

import (
	"fmt"

	"gorgonia.org/tensor"
)

// ordered is an insertion-ordered map from names to values
type ordered[V any] struct {
	names  []string
	values map[string]V
}

func (o *ordered[V]) set(name string, value V) {
	if o.values == nil {
		o.values = make(map[string]V)
	}
	if _, ok := o.values[name]; !ok {
		o.names = append(o.names, name)
	}
	o.values[name] = value
}

// Get returns the value stored under name
func (o *ordered[V]) Get(name string) (V, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Names returns all names in insertion order
func (o *ordered[V]) Names() []string {
	return append([]string{}, o.names...)
}

// Len returns the number of entries
func (o *ordered[V]) Len() int {
	return len(o.names)
}

// Dict is an ordered collection of named TensorSpecs, for example the
// states or actions of an environment
type Dict struct {
	ordered[TensorSpec]
}

// NewDict returns a new, empty Dict
func NewDict() *Dict {
	return &Dict{}
}

// Set adds or replaces the TensorSpec stored under name
func (d *Dict) Set(name string, spec TensorSpec) {
	d.set(name, spec)
}

// Size returns the total number of elements over all TensorSpecs
func (d *Dict) Size() int {
	size := 0
	for _, name := range d.names {
		size += d.values[name].Size()
	}
	return size
}

// Validate returns an error if any TensorSpec in the Dict is invalid
func (d *Dict) Validate() error {
	for _, name := range d.names {
		if err := d.values[name].Validate(); err != nil {
			return fmt.Errorf("%v: %v", name, err)
		}
	}
	return nil
}

// Signature returns the SignatureDict of all TensorSpecs in the Dict
func (d *Dict) Signature(batched bool) *SignatureDict {
	sig := NewSignatureDict()
	for _, name := range d.names {
		sig.Set(name, d.values[name].Signature(batched))
	}
	return sig
}

// SignatureDict is an ordered collection of named Signatures which
// describes all inputs or outputs of a module function
type SignatureDict struct {
	ordered[Signature]

	// Nested signature dictionaries, e.g. the states of a
	// state_value function input signature
	nested ordered[*SignatureDict]
}

// NewSignatureDict returns a new, empty SignatureDict
func NewSignatureDict() *SignatureDict {
	return &SignatureDict{}
}

// Set adds or replaces the Signature stored under name
func (s *SignatureDict) Set(name string, sig Signature) {
	s.set(name, sig)
}

// SetDict adds or replaces the nested SignatureDict stored under name
func (s *SignatureDict) SetDict(name string, sig *SignatureDict) {
	s.nested.set(name, sig)
}

// Dict returns the nested SignatureDict stored under name
func (s *SignatureDict) Dict(name string) (*SignatureDict, bool) {
	return s.nested.Get(name)
}

// DictNames returns the names of all nested SignatureDicts
func (s *SignatureDict) DictNames() []string {
	return s.nested.Names()
}

// Empty returns whether the SignatureDict holds no signatures at all
func (s *SignatureDict) Empty() bool {
	return s.Len() == 0 && s.nested.Len() == 0
}

// Check returns an error if the TensorDict does not satisfy the
// SignatureDict: every signature must have a matching tensor and there
// may be no extra tensors.
func (s *SignatureDict) Check(t *TensorDict) error {
	if t == nil {
		t = NewTensorDict()
	}

	for _, name := range s.names {
		value, ok := t.Get(name)
		if !ok {
			return fmt.Errorf("check: missing tensor %v", name)
		}
		if err := s.values[name].Check(value); err != nil {
			return fmt.Errorf("check: tensor %v: %v", name, err)
		}
	}

	for _, name := range s.nested.names {
		nested, ok := t.Dict(name)
		if !ok {
			return fmt.Errorf("check: missing tensor dict %v", name)
		}
		if err := s.nested.values[name].Check(nested); err != nil {
			return fmt.Errorf("check: %v: %v", name, err)
		}
	}

	for _, name := range t.names {
		if _, ok := s.values[name]; !ok {
			return fmt.Errorf("check: unexpected tensor %v", name)
		}
	}
	for _, name := range t.nested.names {
		if _, ok := s.nested.values[name]; !ok {
			return fmt.Errorf("check: unexpected tensor dict %v", name)
		}
	}

	return nil
}

// TensorDict is an ordered collection of named tensors, possibly
// nested, passed to or returned from module functions
type TensorDict struct {
	ordered[tensor.Tensor]
	nested ordered[*TensorDict]
}

// NewTensorDict returns a new, empty TensorDict
func NewTensorDict() *TensorDict {
	return &TensorDict{}
}

// Set adds or replaces the tensor stored under name
func (t *TensorDict) Set(name string, value tensor.Tensor) {
	t.set(name, value)
}

// SetDict adds or replaces the nested TensorDict stored under name
func (t *TensorDict) SetDict(name string, value *TensorDict) {
	t.nested.set(name, value)
}

// Dict returns the nested TensorDict stored under name
func (t *TensorDict) Dict(name string) (*TensorDict, bool) {
	return t.nested.Get(name)
}

// BatchSize returns the leading dimension shared by all (non-nested)
// tensors in the TensorDict, or an error if tensors disagree
func (t *TensorDict) BatchSize() (int, error) {
	batch := -1
	for _, name := range t.names {
		shape := t.values[name].Shape()
		if len(shape) == 0 {
			return 0, fmt.Errorf("batchSize: tensor %v is a scalar", name)
		}
		if batch >= 0 && shape[0] != batch {
			return 0, fmt.Errorf("batchSize: tensor %v has batch size %v, "+
				"expected %v", name, shape[0], batch)
		}
		batch = shape[0]
	}
	if batch < 0 {
		return 0, fmt.Errorf("batchSize: no tensors")
	}
	return batch, nil
}
