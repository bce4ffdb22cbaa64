package queryir

// Statement is a query or modification against one configured table.
type Statement interface {
	statementNode()
}

// Predicate is a filter condition.
type Predicate interface {
	predicateNode()
}

// Count counts the rows of From matching Filter.
type Count struct {
	From   string
	Filter Predicate // nil counts every row
}

func (Count) statementNode() {}

// Exists selects nothing from From. It succeeds only when the table exists
// and is readable.
type Exists struct {
	From string
}

func (Exists) statementNode() {}

// Copy inserts the rows of From matching Filter into Into. Columns are
// read and written by the same names.
type Copy struct {
	From    string
	Into    string
	Columns []string
	Filter  Predicate
}

func (Copy) statementNode() {}

// Delete removes the rows of From matching Filter. A Delete must carry a
// filter; clearing a whole table is never a phase's intent.
type Delete struct {
	From   string
	Filter Predicate
}

func (Delete) statementNode() {}

// Assignment sets one column.
type Assignment struct {
	Column string
	Value  any
}

// Update sets columns of the rows of Table matching Filter.
type Update struct {
	Table  string
	Set    []Assignment
	Filter Predicate
}

func (Update) statementNode() {}

// Equals matches Field = Value.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// Before matches Field < Value.
type Before struct {
	Field string
	Value any
}

func (Before) predicateNode() {}

// Range matches Start <= Field < End, the half-open window bound.
type Range struct {
	Field string
	Start any
	End   any
}

func (Range) predicateNode() {}

// And matches when every predicate matches. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
