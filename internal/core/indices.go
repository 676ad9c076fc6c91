package core

// indices.go holds the three indices behind an import session:
//
//   - Row Store: row id -> current field values
//   - Order Index: display order of row ids, kept apart from row content so
//     editing a row never moves it and deleting one never re-keys the others
//   - Error Index: row id -> validation problems of that row
//
// Every mutator leaves order a permutation of the row ids and errors a subset of them.

// indices is copied on write by the reducer; clone before mutating.
type indices struct {
	rows   map[string]WorkingRow
	order  []string
	errors map[string][]FieldError
}

func newIndices() indices {
	return indices{
		rows:   make(map[string]WorkingRow),
		order:  []string{},
		errors: make(map[string][]FieldError),
	}
}

// clone returns a copy whose maps and order slice can be mutated independently.
// FieldError slices are shared; they are always replaced, never appended to.
func (ix indices) clone() indices {
	c := indices{
		rows:   make(map[string]WorkingRow, len(ix.rows)),
		order:  make([]string, len(ix.order)),
		errors: make(map[string][]FieldError, len(ix.errors)),
	}
	for id, row := range ix.rows {
		c.rows[id] = row
	}
	copy(c.order, ix.order)
	for id, errs := range ix.errors {
		c.errors[id] = errs
	}
	return c
}

// setRows bulk-replaces the Row Store and runs a full validation pass.
// The caller must follow with setOrder.
func (ix *indices) setRows(rows []WorkingRow) {
	ix.rows = make(map[string]WorkingRow, len(rows))
	for _, row := range rows {
		ix.rows[row.ID] = row
	}
	ix.setErrors(validateAll(ix.rows))
}

// setOrder bulk-replaces the display order. Unknown and duplicate ids are dropped.
func (ix *indices) setOrder(ids []string) {
	seen := make(map[string]bool, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := ix.rows[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
	}
	ix.order = order
}

// deleteRow removes id from the Order Index and purges its Row Store and Error Index entries.
// Returns false if id was not visible.
func (ix *indices) deleteRow(id string) bool {
	pos := ix.position(id)
	if pos < 0 {
		return false
	}
	ix.order = append(ix.order[:pos:pos], ix.order[pos+1:]...)
	delete(ix.rows, id)
	delete(ix.errors, id)
	return true
}

// setErrors bulk-replaces the Error Index. Entries for unknown ids and empty lists are dropped.
func (ix *indices) setErrors(m map[string][]FieldError) {
	ix.errors = make(map[string][]FieldError, len(m))
	for id, errs := range m {
		if _, ok := ix.rows[id]; ok && len(errs) > 0 {
			ix.errors[id] = errs
		}
	}
}

// putRow replaces a row's content and re-validates that row only.
func (ix *indices) putRow(row WorkingRow) {
	ix.rows[row.ID] = row
	if errs := Validate(row); len(errs) > 0 {
		ix.errors[row.ID] = errs
	} else {
		delete(ix.errors, row.ID)
	}
}

// position returns the 0-based display position of id, or -1.
func (ix *indices) position(id string) int {
	for i, oid := range ix.order {
		if oid == id {
			return i
		}
	}
	return -1
}

// ordered returns the visible rows in display order.
func (ix *indices) ordered() []WorkingRow {
	out := make([]WorkingRow, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, ix.rows[id])
	}
	return out
}

func (ix *indices) invalidCount() int {
	return len(ix.errors)
}
