package expr

import (
	"golang.org/x/exp/constraints"
)

// Update is a single field mutation. Updates compile into exactly one of
// three clause groups: SET, REMOVE, or ADD.
type Update interface {
	// Target is the attribute the update mutates.
	Target() Attr
	isUpdate()
}

// SetUpdate assigns a value. An empty value with IfNotExists unset degrades
// to a removal; an empty value with IfNotExists set compiles to nothing.
type SetUpdate struct {
	Attr        Attr
	Value       any
	IfNotExists bool
}

func (u *SetUpdate) Target() Attr { return u.Attr }
func (u *SetUpdate) isUpdate()    {}

// RemoveUpdate deletes the attribute.
type RemoveUpdate struct {
	Attr Attr
}

func (u *RemoveUpdate) Target() Attr { return u.Attr }
func (u *RemoveUpdate) isUpdate()    {}

// AddUpdate adds a numeric delta to a top-level attribute. A zero delta
// compiles to nothing.
type AddUpdate struct {
	Attr  Attr
	Delta float64
}

func (u *AddUpdate) Target() Attr { return u.Attr }
func (u *AddUpdate) isUpdate()    {}

// ListExtendUpdate appends or prepends values to a list attribute. An empty
// value list compiles to nothing.
type ListExtendUpdate struct {
	Attr   Attr
	Values []any
	Append bool
}

func (u *ListExtendUpdate) Target() Attr { return u.Attr }
func (u *ListExtendUpdate) isUpdate()    {}

type number interface {
	constraints.Integer | constraints.Float
}

// Add builds a numeric addition update.
func Add[T number](a Attr, delta T) Update {
	return &AddUpdate{Attr: a, Delta: float64(delta)}
}

// Subtract builds a numeric subtraction update.
func Subtract[T number](a Attr, delta T) Update {
	return &AddUpdate{Attr: a, Delta: -float64(delta)}
}
