package constants

import "strings"

// Operation is the wire name of a transformation a Job applies.
type Operation string

const (
	OpMerge         Operation = "merge"
	OpSplit         Operation = "split"
	OpPDFToWord     Operation = "pdf-to-word"
	OpPDFToImages   Operation = "pdf-to-images"
	OpImageToPDF    Operation = "image-to-pdf"
	OpResize        Operation = "resize"
	OpFormatConvert Operation = "format-convert"
	OpFilter        Operation = "filter"
)

var allOperations = []Operation{
	OpMerge,
	OpSplit,
	OpPDFToWord,
	OpPDFToImages,
	OpImageToPDF,
	OpResize,
	OpFormatConvert,
	OpFilter,
}

// Unbounded marks an Arity without an upper limit.
const Unbounded = -1

// Arity is the number of inputs an operation accepts.
type Arity struct {
	Min int
	Max int
}

// Allows reports whether n inputs satisfy the arity.
func (a Arity) Allows(n int) bool {
	if n < a.Min {
		return false
	}
	return a.Max == Unbounded || n <= a.Max
}

var arities = map[Operation]Arity{
	OpMerge:         {Min: 2, Max: Unbounded},
	OpSplit:         {Min: 1, Max: 1},
	OpPDFToWord:     {Min: 1, Max: Unbounded},
	OpPDFToImages:   {Min: 1, Max: 1},
	OpImageToPDF:    {Min: 1, Max: Unbounded},
	OpResize:        {Min: 1, Max: 1},
	OpFormatConvert: {Min: 1, Max: 1},
	OpFilter:        {Min: 1, Max: 1},
}

// Operations returns every known operation in declaration order.
func Operations() []Operation {
	out := make([]Operation, len(allOperations))
	copy(out, allOperations)
	return out
}

// ParseOperation canonicalizes a user supplied operation name.
// Underscores are accepted in place of dashes.
func ParseOperation(s string) (Operation, bool) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for _, op := range allOperations {
		if string(op) == norm {
			return op, true
		}
	}
	return "", false
}

// Arity returns the input arity for op.
func (op Operation) Arity() Arity {
	return arities[op]
}

// WritesDirectory is true for operations whose output path names a directory.
func (op Operation) WritesDirectory() bool {
	return op == OpSplit || op == OpPDFToImages
}

// AcceptsPDF is true for operations that read PDF inputs.
func (op Operation) AcceptsPDF() bool {
	switch op {
	case OpMerge, OpSplit, OpPDFToWord, OpPDFToImages:
		return true
	}
	return false
}
