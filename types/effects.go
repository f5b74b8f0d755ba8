// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"fmt"
	"sort"
)

// Op is a single write in a change set: either new bytes or a deletion
type Op struct {
	Deletion bool
	Value    []byte
}

// Write returns an op storing [value]
func Write(value []byte) Op { return Op{Value: value} }

// Delete returns an op removing the entry
func Delete() Op { return Op{Deletion: true} }

func (o Op) String() string {
	if o.Deletion {
		return "delete"
	}
	return fmt.Sprintf("write(%d bytes)", len(o.Value))
}

// AccountChangeSet holds the module and resource writes of one account
type AccountChangeSet struct {
	modules   map[Identifier]Op
	resources map[string]resourceOp
}

type resourceOp struct {
	tag StructTag
	op  Op
}

// ModuleOp is a module write paired with the module's name
type ModuleOp struct {
	Name Identifier
	Op   Op
}

// ResourceOp is a resource write paired with the resource's type
type ResourceOp struct {
	Tag StructTag
	Op  Op
}

// NewAccountChangeSet returns an empty account change set
func NewAccountChangeSet() *AccountChangeSet {
	return &AccountChangeSet{
		modules:   make(map[Identifier]Op),
		resources: make(map[string]resourceOp),
	}
}

// AddModuleOp records [op] for module [name], failing if one is recorded already
func (a *AccountChangeSet) AddModuleOp(name Identifier, op Op) error {
	if _, ok := a.modules[name]; ok {
		return fmt.Errorf("module %s already has a pending write", name)
	}
	a.modules[name] = op
	return nil
}

// AddResourceOp records [op] for resource [tag], failing if one is recorded already
func (a *AccountChangeSet) AddResourceOp(tag StructTag, op Op) error {
	key := string(tag.Bytes())
	if _, ok := a.resources[key]; ok {
		return fmt.Errorf("resource %s already has a pending write", tag)
	}
	a.resources[key] = resourceOp{tag: tag, op: op}
	return nil
}

// Modules returns the module writes ordered by module name
func (a *AccountChangeSet) Modules() []ModuleOp {
	ops := make([]ModuleOp, 0, len(a.modules))
	for name, op := range a.modules {
		ops = append(ops, ModuleOp{Name: name, Op: op})
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })
	return ops
}

// Resources returns the resource writes ordered by canonical tag encoding
func (a *AccountChangeSet) Resources() []ResourceOp {
	keys := make([]string, 0, len(a.resources))
	for k := range a.resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ops := make([]ResourceOp, len(keys))
	for i, k := range keys {
		r := a.resources[k]
		ops[i] = ResourceOp{Tag: r.tag, Op: r.op}
	}
	return ops
}

// Module returns the write recorded for module [name]
func (a *AccountChangeSet) Module(name Identifier) (Op, bool) {
	op, ok := a.modules[name]
	return op, ok
}

// Resource returns the write recorded for resource [tag]
func (a *AccountChangeSet) Resource(tag StructTag) (Op, bool) {
	r, ok := a.resources[string(tag.Bytes())]
	return r.op, ok
}

// IsEmpty reports whether the account has no writes at all
func (a *AccountChangeSet) IsEmpty() bool { return len(a.modules) == 0 && len(a.resources) == 0 }

// squash folds [o] over [a]; later writes win
func (a *AccountChangeSet) squash(o *AccountChangeSet) {
	for name, op := range o.modules {
		a.modules[name] = op
	}
	for key, r := range o.resources {
		a.resources[key] = r
	}
}

// ChangeSet is the externally visible output of a session: per account
// module and resource writes.
type ChangeSet struct {
	accounts map[AccountAddress]*AccountChangeSet
}

// NewChangeSet returns an empty change set
func NewChangeSet() *ChangeSet {
	return &ChangeSet{accounts: make(map[AccountAddress]*AccountChangeSet)}
}

// PublishOrOverwriteAccountChangeSet sets the account change set of [addr]
func (c *ChangeSet) PublishOrOverwriteAccountChangeSet(addr AccountAddress, acs *AccountChangeSet) {
	c.accounts[addr] = acs
}

func (c *ChangeSet) accountOrInsert(addr AccountAddress) *AccountChangeSet {
	acs, ok := c.accounts[addr]
	if !ok {
		acs = NewAccountChangeSet()
		c.accounts[addr] = acs
	}
	return acs
}

// AddModuleOp records a module write under [id]
func (c *ChangeSet) AddModuleOp(id ModuleID, op Op) error {
	return c.accountOrInsert(id.Address).AddModuleOp(id.Name, op)
}

// AddResourceOp records a resource write under [addr]
func (c *ChangeSet) AddResourceOp(addr AccountAddress, tag StructTag, op Op) error {
	return c.accountOrInsert(addr).AddResourceOp(tag, op)
}

// Accounts returns the touched addresses in ascending order
func (c *ChangeSet) Accounts() []AccountAddress {
	addrs := make([]AccountAddress, 0, len(c.accounts))
	for addr := range c.accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Compare(addrs[j]) < 0 })
	return addrs
}

// Account returns the change set of [addr]
func (c *ChangeSet) Account(addr AccountAddress) (*AccountChangeSet, bool) {
	acs, ok := c.accounts[addr]
	return acs, ok
}

// Len returns the number of accounts in the change set
func (c *ChangeSet) Len() int { return len(c.accounts) }

// Squash folds a later change set [o] over [c]
func (c *ChangeSet) Squash(o *ChangeSet) {
	for _, addr := range o.Accounts() {
		c.accountOrInsert(addr).squash(o.accounts[addr])
	}
}

// Event is an emitted event, in emission order
type Event struct {
	Key            []byte  `json:"key"`
	SequenceNumber uint64  `json:"sequenceNumber"`
	Type           TypeTag `json:"-"`
	Data           []byte  `json:"data"`
}
