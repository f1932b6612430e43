package action

import (
	"fmt"

	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/item"
)

// ParseStack decodes one list-response array entry into an ItemStack. A
// Null entry or a bare String entry ("slot exists but no item", per spec
// §6) both mean an empty slot and parse to the zero ItemStack with a nil
// Item. Any other non-table shape is a protocol error.
func ParseStack(v codec.Value) (item.ItemStack, error) {
	switch t := v.(type) {
	case codec.Null:
		return item.ItemStack{}, nil
	case codec.String:
		return item.ItemStack{}, nil
	case codec.Table:
		return parseStackTable(t)
	default:
		return item.ItemStack{}, fmt.Errorf("action: unexpected %s in stack list entry", v.Kind())
	}
}

var requiredStackFields = map[string]struct{}{
	"size": {}, "name": {}, "label": {}, "damage": {},
	"maxDamage": {}, "maxSize": {}, "hasTag": {},
}

func parseStackTable(t codec.Table) (item.ItemStack, error) {
	size, err := t.GetNumber("size")
	if err != nil {
		return item.ItemStack{}, err
	}
	name, err := t.GetString("name")
	if err != nil {
		return item.ItemStack{}, err
	}
	label, err := t.GetString("label")
	if err != nil {
		return item.ItemStack{}, err
	}
	damage, err := t.GetNumber("damage")
	if err != nil {
		return item.ItemStack{}, err
	}
	maxDamage, err := t.GetNumber("maxDamage")
	if err != nil {
		return item.ItemStack{}, err
	}
	maxSize, err := t.GetNumber("maxSize")
	if err != nil {
		return item.ItemStack{}, err
	}
	hasTag, err := t.GetBool("hasTag")
	if err != nil {
		return item.ItemStack{}, err
	}

	var others map[string]codec.Value
	for k, v := range t {
		if k.Kind() != codec.KindString {
			continue
		}
		name, _ := k.Value().(codec.String)
		if _, required := requiredStackFields[string(name)]; required {
			continue
		}
		if others == nil {
			others = make(map[string]codec.Value)
		}
		others[string(name)] = v
	}

	it := &item.Item{
		Name:      name,
		Label:     label,
		Damage:    int(damage),
		MaxDamage: int(maxDamage),
		MaxSize:   int(maxSize),
		HasTag:    hasTag,
		Others:    others,
	}
	return item.ItemStack{Item: it, Size: int(size)}, nil
}

// ParseStackList decodes a full list/listXN/listME response (an
// integer-keyed table of stack-or-null entries) into a dense, 0-indexed
// slice of ItemStack.
func ParseStackList(v codec.Value) ([]item.ItemStack, error) {
	arr, err := codec.TableToArray(v)
	if err != nil {
		return nil, fmt.Errorf("action: list response is not an array table: %w", err)
	}
	out := make([]item.ItemStack, len(arr))
	for i, entry := range arr {
		st, err := ParseStack(entry)
		if err != nil {
			return nil, fmt.Errorf("action: slot %d: %w", i, err)
		}
		out[i] = st
	}
	return out, nil
}
