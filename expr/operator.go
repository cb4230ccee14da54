package expr

// Operator is a comparison operator usable in a Condition.
type Operator string

const (
	OpEq         Operator = "EQ"
	OpNe         Operator = "NE"
	OpLt         Operator = "LT"
	OpLte        Operator = "LTE"
	OpGt         Operator = "GT"
	OpGte        Operator = "GTE"
	OpIn         Operator = "IN"
	OpContains   Operator = "CONTAINS"
	OpBeginsWith Operator = "BEGINS_WITH"
	OpExists     Operator = "EXISTS"
	OpNotExists  Operator = "NOT_EXISTS"
	OpBetween    Operator = "BETWEEN"
)

// Arity is the fixed operand count for the operator. EXISTS and NOT_EXISTS
// take no operand, BETWEEN takes two, everything else takes one. IN's single
// operand is the list of candidate values.
func (op Operator) Arity() int {
	switch op {
	case OpExists, OpNotExists:
		return 0
	case OpBetween:
		return 2
	default:
		return 1
	}
}

func (op Operator) valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte,
		OpIn, OpContains, OpBeginsWith, OpExists, OpNotExists, OpBetween:
		return true
	}
	return false
}
