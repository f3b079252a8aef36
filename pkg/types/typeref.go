package types

// TypeRef is a shared handle to a type descriptor (spec §3, §9). For
// built-in scalar types it is a tagged small integer with no heap
// allocation; for extended types it carries a strong reference to a
// Descriptor. Equality compares the built-in tag or dereferences
// extended descriptors.
type TypeRef struct {
	id  TypeID
	ext Descriptor
}

// Builtin wraps a built-in scalar TypeID as a TypeRef.
func Builtin(id TypeID) TypeRef {
	return TypeRef{id: id}
}

// Extended wraps an extended type Descriptor as a TypeRef.
func Extended(d Descriptor) TypeRef {
	return TypeRef{id: ExtendedTypeID, ext: d}
}

// IsBuiltin reports whether this TypeRef names a built-in scalar type.
func (t TypeRef) IsBuiltin() bool { return t.ext == nil }

// IsExtended reports whether this TypeRef names an extended type.
func (t TypeRef) IsExtended() bool { return t.ext != nil }

// IsNull reports whether this TypeRef has never been assigned (the zero
// value, TypeRef{}, is the built-in Bool tag by construction — use
// IsNull only on TypeRefs explicitly constructed as "absent").
func (t TypeRef) IsNull() bool { return t.ext == nil && t.id == ExtendedTypeID }

// Null returns the canonical "no type" TypeRef, distinguishable from
// every built-in tag and every extended descriptor.
func Null() TypeRef { return TypeRef{id: ExtendedTypeID} }

// TypeID returns the built-in tag; for extended types it returns
// ExtendedTypeID.
func (t TypeRef) TypeID() TypeID { return t.id }

// Extension returns the extended Descriptor, or nil for built-ins.
func (t TypeRef) Extension() Descriptor { return t.ext }

// Kind returns the coarse category used for dispatch.
func (t TypeRef) Kind() Kind {
	if t.ext != nil {
		return t.ext.Kind()
	}
	return t.id.Kind()
}

// DataSize returns the fixed data size in bytes, or 0 if variable.
func (t TypeRef) DataSize() int {
	if t.ext != nil {
		return t.ext.DataSize()
	}
	return t.id.DataSize()
}

// DataAlignment returns the required data alignment.
func (t TypeRef) DataAlignment() int {
	if t.ext != nil {
		return t.ext.DataAlignment()
	}
	return t.id.DataAlignment()
}

// MetadataSize returns the per-array metadata size this type requires.
func (t TypeRef) MetadataSize() int {
	if t.ext != nil {
		return t.ext.MetadataSize()
	}
	return 0
}

// Flags returns the type's storage-trait bitset.
func (t TypeRef) Flags() Flags {
	if t.ext != nil {
		return t.ext.Flags()
	}
	return FlagScalar
}

// String prints the type's canonical datashape form.
func (t TypeRef) String() string {
	if t.ext != nil {
		return t.ext.PrintType()
	}
	return t.id.Name()
}

// Equal is a congruence: equal TypeRefs produce identical metadata
// layouts and identical kernel factories (spec §3's invariant).
func (t TypeRef) Equal(other TypeRef) bool {
	if t.ext == nil && other.ext == nil {
		return t.id == other.id
	}
	if t.ext != nil && other.ext != nil {
		if t.ext == other.ext {
			return true
		}
		return t.ext.Equal(other.ext)
	}
	return false
}

// IsLosslessAssignmentFrom reports whether every value representable by
// src maps to a distinct, recoverable value of type t.
func (t TypeRef) IsLosslessAssignmentFrom(src TypeRef) bool {
	if t.Equal(src) {
		return true
	}
	if t.ext != nil {
		return t.ext.IsLosslessAssignmentFrom(src)
	}
	return builtinIsLosslessAssignmentFrom(t.id, src)
}

// ValueType returns the type a reader sees through an expression layer,
// or t itself for non-expression types (spec §4.2's "Expression types").
func (t TypeRef) ValueType() TypeRef {
	if expr, ok := t.ext.(*ExpressionType); ok {
		return expr.ValueType
	}
	return t
}

// OperandType returns the storage representation an expression type
// composes over, or t itself for non-expression types.
func (t TypeRef) OperandType() TypeRef {
	if expr, ok := t.ext.(*ExpressionType); ok {
		return expr.OperandType
	}
	return t
}

// IsExpression reports whether t is an expression type.
func (t TypeRef) IsExpression() bool {
	_, ok := t.ext.(*ExpressionType)
	return ok
}
