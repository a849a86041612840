package inline

import (
	"github.com/gomlx/onnx-inline/ir"
	"github.com/gomlx/onnx-inline/schema"
	"github.com/pkg/errors"
)

// Binding is the substitution computed for one call site.
type Binding struct {
	// CallName identifies the call site in generated names: the node's own name,
	// the caller's prefix, or the function name plus a fresh token.
	CallName string

	// Names maps formal input and output names to the call site's actual names.
	// Formal outputs whose actual name is empty are absent.
	Names map[string]string

	// Attrs maps attribute names to the values visible to the function body: the
	// call site's literal attributes plus the schema defaults it did not supply.
	Attrs map[string]ir.AttrValue

	// Version is the opset version of the call's domain imported by the function.
	Version int64

	// Schema is the operator schema consulted for defaults.
	Schema *schema.OpSchema
}

// Bind computes the formal to actual substitution of call against fn.
// It fails without side effects; see Expand for the error kinds.
func (e *Expander) Bind(call *ir.Node, fn *ir.Function) (*Binding, error) {
	return e.bind(call, fn, "")
}

func (e *Expander) bind(call *ir.Node, fn *ir.Function, prefix string) (*Binding, error) {
	b := &Binding{
		CallName: e.callName(call, fn, prefix),
		Names:    make(map[string]string, len(call.Inputs)+len(call.Outputs)),
		Attrs:    make(map[string]ir.AttrValue, len(call.Attributes)),
	}

	for idx, actual := range call.Inputs {
		if idx >= len(fn.Inputs) {
			return nil, errors.Wrapf(ErrBindingOutOfRange,
				"input %d for function node %s (%s has %d inputs)", idx, b.CallName, fn.Name, len(fn.Inputs))
		}
		b.Names[fn.Inputs[idx]] = actual
	}
	for idx, actual := range call.Outputs {
		if idx >= len(fn.Outputs) {
			return nil, errors.Wrapf(ErrBindingOutOfRange,
				"output %d for function node %s (%s has %d outputs)", idx, b.CallName, fn.Name, len(fn.Outputs))
		}
		// An unused output keeps flowing inside the body as an internal value.
		if actual == "" {
			continue
		}
		b.Names[fn.Outputs[idx]] = actual
	}

	for _, attr := range call.Attributes {
		// A reference on the call site itself has nothing left to resolve against.
		if attr.IsRef() {
			continue
		}
		b.Attrs[attr.Name] = attr.Value
	}

	version, ok := fn.OpsetVersion(call.Domain)
	if !ok {
		return nil, errors.Wrapf(ErrUnresolvedOpsetImport,
			"domain %q of function node %s is not imported by function %s", call.Domain, b.CallName, fn.Name)
	}
	b.Version = version

	s, ok := e.schemas.Lookup(call.OpType, call.Domain, version)
	if !ok {
		return nil, errors.Wrapf(ErrSchemaNotFound,
			"%s in domain %q at opset version %d, for function node %s", call.OpType, call.Domain, version, b.CallName)
	}
	b.Schema = s
	for name, value := range s.Defaults() {
		if _, found := b.Attrs[name]; !found {
			b.Attrs[name] = value
		}
	}
	return b, nil
}

// callName resolves the identity of a call site used to scope its internal names.
func (e *Expander) callName(call *ir.Node, fn *ir.Function, prefix string) string {
	switch {
	case call.Name != "":
		return call.Name
	case prefix != "":
		return fn.Name + prefix
	default:
		return fn.Name + "_" + e.tokens.Token()
	}
}
