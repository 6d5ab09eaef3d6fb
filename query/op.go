package query

// Op identifies one operator in an expression tree.
type Op int

const (
	Equal Op = iota
	NotEqual
	LessThan
	LessEqual
	GreaterThan
	GreaterEqual
	Add
	Concatenate
	Subtract
	Multiply
	Divide
	FloorDivide
	Modulo
	And
	Or
	Not
	Negative
	Abs
	Length
	Ascend
	Descend
	Sum
	Average
	Min
	Max
	Between
	Upper
	Lower
	Like
	Glob
	Strip
	LStrip
	RStrip
	Replace
	Round
	Substring
	Coalesce
)

var opNames = [...]string{
	Equal:        "EQUAL",
	NotEqual:     "NOTEQUAL",
	LessThan:     "LESSTHAN",
	LessEqual:    "LESSEQUAL",
	GreaterThan:  "GREATERTHAN",
	GreaterEqual: "GREATEREQUAL",
	Add:          "ADD",
	Concatenate:  "CONCATENATE",
	Subtract:     "SUBTRACT",
	Multiply:     "MULTIPLY",
	Divide:       "DIVIDE",
	FloorDivide:  "FLOORDIVIDE",
	Modulo:       "MODULO",
	And:          "AND",
	Or:           "OR",
	Not:          "NOT",
	Negative:     "NEGATIVE",
	Abs:          "ABS",
	Length:       "LENGTH",
	Ascend:       "ASCEND",
	Descend:      "DESCEND",
	Sum:          "SUM",
	Average:      "AVERAGE",
	Min:          "MIN",
	Max:          "MAX",
	Between:      "BETWEEN",
	Upper:        "UPPER",
	Lower:        "LOWER",
	Like:         "LIKE",
	Glob:         "GLOB",
	Strip:        "STRIP",
	LStrip:       "LSTRIP",
	RStrip:       "RSTRIP",
	Replace:      "REPLACE",
	Round:        "ROUND",
	Substring:    "SUBSTRING",
	Coalesce:     "COALESCE",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "UNKNOWN"
}

// IsAggregate reports whether the operator folds a whole column of
// values into one (computed over the result set, not per row).
func (op Op) IsAggregate() bool {
	switch op {
	case Sum, Average, Min, Max:
		return true
	}
	return false
}
