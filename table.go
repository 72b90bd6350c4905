package wecs

import (
	"reflect"
	"unsafe"
)

// column is one contiguous array of component values plus the change
// ticks tracked per row. Values are stored by value in a reflect-backed
// slice; the hot iteration path reads rows through a raw base pointer.
type column struct {
	typ     reflect.Type
	data    reflect.Value // addressable slice of typ
	added   []Tick
	changed []Tick

	// base and stride cache the slice memory for pointer arithmetic.
	// Refreshed after every append since growth relocates the array.
	base   unsafe.Pointer
	stride uintptr
}

func newColumn(t reflect.Type) *column {
	c := &column{
		typ:    t,
		data:   reflect.New(reflect.SliceOf(t)).Elem(),
		stride: t.Size(),
	}
	return c
}

func (c *column) len() int { return c.data.Len() }

// refresh re-reads the slice base pointer after growth.
func (c *column) refresh() {
	if c.data.Len() > 0 {
		c.base = c.data.Index(0).Addr().UnsafePointer()
	} else {
		c.base = nil
	}
}

// push appends a value with fresh ticks stamped at t. The slice is
// grown through Set so c.data stays addressable for SetLen.
func (c *column) push(v reflect.Value, t Tick) {
	c.data.Set(reflect.Append(c.data, v))
	c.added = append(c.added, t)
	c.changed = append(c.changed, t)
	c.refresh()
}

// transferTo appends row's value to dst keeping its change ticks intact,
// so a structural move never looks like a mutation.
func (c *column) transferTo(dst *column, row int) {
	dst.data.Set(reflect.Append(dst.data, c.data.Index(row)))
	dst.added = append(dst.added, c.added[row])
	dst.changed = append(dst.changed, c.changed[row])
	dst.refresh()
}

// swapRemove removes row by moving the last row into its place.
func (c *column) swapRemove(row int) {
	last := c.data.Len() - 1
	if row != last {
		c.data.Index(row).Set(c.data.Index(last))
		c.added[row] = c.added[last]
		c.changed[row] = c.changed[last]
	}
	c.data.SetLen(last)
	c.added = c.added[:last]
	c.changed = c.changed[:last]
	c.refresh()
}

// ptr returns the address of the value at row.
func (c *column) ptr(row int) unsafe.Pointer {
	if c.stride == 0 {
		return c.base
	}
	return unsafe.Add(c.base, uintptr(row)*c.stride)
}

// set overwrites the value at row and stamps it changed at t.
func (c *column) set(row int, v reflect.Value, t Tick) {
	c.data.Index(row).Set(v)
	c.changed[row] = t
}

// ticks returns the change ticks for row.
func (c *column) ticks(row int) ComponentTicks {
	return ComponentTicks{Added: c.added[row], Changed: c.changed[row]}
}

// markChanged stamps row as mutated at t.
func (c *column) markChanged(row int, t Tick) {
	c.changed[row] = t
}

// checkTicks clamps every stored tick against current, returning how many
// were clamped.
func (c *column) checkTicks(current Tick) int {
	n := 0
	for i := range c.added {
		if c.added[i].CheckTick(current) {
			n++
		}
		if c.changed[i].CheckTick(current) {
			n++
		}
	}
	return n
}

// Table is the row storage of one archetype: a set of aligned columns,
// one per component, plus the entity handle that owns each row.
type Table struct {
	columns  map[ComponentID]*column
	entities []Entity
}

func newTable(ids []ComponentID, types []reflect.Type) *Table {
	t := &Table{columns: make(map[ComponentID]*column, len(ids))}
	for i, id := range ids {
		t.columns[id] = newColumn(types[i])
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.entities) }

// column returns the storage for one component, or nil if the table does
// not hold it.
func (t *Table) column(id ComponentID) *column {
	return t.columns[id]
}

// addRow appends an empty row owned by e and returns its index. Columns
// are filled by the caller.
func (t *Table) addRow(e Entity) int {
	t.entities = append(t.entities, e)
	return len(t.entities) - 1
}

// swapRemoveRow removes row from all columns. If another entity was moved
// into the vacated row, it is returned so the caller can fix its location.
func (t *Table) swapRemoveRow(row int) (Entity, bool) {
	for _, c := range t.columns {
		c.swapRemove(row)
	}
	last := len(t.entities) - 1
	moved := Entity{}
	ok := false
	if row != last {
		moved = t.entities[last]
		t.entities[row] = moved
		ok = true
	}
	t.entities = t.entities[:last]
	return moved, ok
}

// entity returns the handle owning row.
func (t *Table) entity(row int) Entity {
	return t.entities[row]
}
