// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package service exposes sessions and committed state over JSON-RPC
package service

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/hashing"
	cjson "github.com/ava-labs/avalanchego/utils/json"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/gorilla/rpc/v2"
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/resourcevm/gas"
	"github.com/ava-labs/resourcevm/natives"
	"github.com/ava-labs/resourcevm/resolver"
	"github.com/ava-labs/resourcevm/runtime"
	"github.com/ava-labs/resourcevm/state"
	"github.com/ava-labs/resourcevm/tables"
	"github.com/ava-labs/resourcevm/types"
)

const (
	// Name is the name of the JSON-RPC service
	Name = "resourcevm"
	// Version of the daemon
	Version = "v0.1.0"
	// Endpoint is the path the JSON-RPC handler is served on
	Endpoint = "/rpc"
)

var (
	errModuleNotFound   = errors.New("module not found")
	errResourceNotFound = errors.New("resource not found")
	errEntryNotFound    = errors.New("table entry not found")
	errNoSenders        = errors.New("at least one sender is required")
)

// Config tunes the service
type Config struct {
	// GasBudget is the gas available to each call
	GasBudget uint64 `json:"gasBudget"`
}

// DefaultConfig is used when no config is supplied
var DefaultConfig = Config{GasBudget: 1_000_000}

// Service runs calls against [state]. Calls that write hold the lock
// exclusively from the first read to the commit.
type Service struct {
	vm     *runtime.VM
	state  state.State
	config Config

	lock sync.RWMutex
}

// New returns a service over [st]
func New(vm *runtime.VM, st state.State, config Config) *Service {
	return &Service{
		vm:     vm,
		state:  st,
		config: config,
	}
}

// NewHandler returns the JSON-RPC handler serving [s]
func NewHandler(s *Service) (http.Handler, error) {
	newServer := rpc.NewServer()
	codec := cjson.NewCodec()
	newServer.RegisterCodec(codec, "application/json")
	newServer.RegisterCodec(codec, "application/json;charset=UTF-8")
	return newServer, newServer.RegisterService(s, Name)
}

func decodeAll(strs []string) ([][]byte, error) {
	out := make([][]byte, len(strs))
	for i, str := range strs {
		b, err := formatting.Decode(formatting.Hex, str)
		if err != nil {
			return nil, fmt.Errorf("couldn't decode argument %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

func encodeAll(bs [][]byte) ([]string, error) {
	out := make([]string, len(bs))
	for i, b := range bs {
		str, err := formatting.EncodeWithChecksum(formatting.Hex, b)
		if err != nil {
			return nil, err
		}
		out[i] = str
	}
	return out, nil
}

func parseTypeArgs(strs []string) ([]types.TypeTag, error) {
	tags := make([]types.TypeTag, len(strs))
	for i, str := range strs {
		tag, err := types.ParseTypeTag(str)
		if err != nil {
			return nil, err
		}
		tags[i] = tag
	}
	return tags, nil
}

// nextTxn returns the sequence number of the next committed transaction
func (s *Service) nextTxn() (uint64, error) {
	counter, err := s.state.TxnCounter()
	if err != nil {
		return 0, err
	}
	return counter + 1, nil
}

// txnHash derives the hash seeding the table handles created by transaction
// [txn]. It depends only on the request and the committed state.
func txnHash(txn uint64, senders []types.AccountAddress, payload [][]byte) types.U128 {
	size := wrappers.LongLen + wrappers.IntLen
	for _, sender := range senders {
		size += wrappers.IntLen + len(sender.Bytes())
	}
	for _, b := range payload {
		size += wrappers.IntLen + len(b)
	}
	p := wrappers.Packer{MaxSize: size}
	p.PackLong(txn)
	p.PackInt(uint32(len(senders)))
	for _, sender := range senders {
		p.PackBytes(sender.Bytes())
	}
	for _, b := range payload {
		p.PackBytes(b)
	}
	hash := hashing.ComputeHash256Array(p.Bytes)
	var be [16]byte
	copy(be[:], hash[:])
	return types.U128FromBigEndian(be)
}

// Event is an emitted event
type Event struct {
	Key            string       `json:"key"`
	SequenceNumber cjson.Uint64 `json:"sequenceNumber"`
	Type           string       `json:"type"`
	Data           string       `json:"data"`
}

func encodeEvents(events []types.Event) ([]Event, error) {
	out := make([]Event, len(events))
	for i, e := range events {
		key, err := formatting.EncodeWithChecksum(formatting.Hex, e.Key)
		if err != nil {
			return nil, err
		}
		data, err := formatting.EncodeWithChecksum(formatting.Hex, e.Data)
		if err != nil {
			return nil, err
		}
		out[i] = Event{
			Key:            key,
			SequenceNumber: cjson.Uint64(e.SequenceNumber),
			Type:           e.Type.String(),
			Data:           data,
		}
	}
	return out, nil
}

// commit persists the output of a successful session as transaction [txn]
func (s *Service) commit(txn uint64, changes *types.ChangeSet, events []types.Event, tableChanges *tables.ChangeSet) error {
	if err := s.state.SetTxnCounter(txn); err != nil {
		s.state.Abort()
		return err
	}
	if err := s.state.Apply(changes, events, tableChanges); err != nil {
		s.state.Abort()
		return err
	}
	if err := s.state.Commit(); err != nil {
		s.state.Abort()
		return err
	}
	log.Info("committed session", "txn", txn, "accounts", changes.Len(), "events", len(events))
	return nil
}

// PublishModuleBundleArgs are the arguments to PublishModuleBundle
type PublishModuleBundleArgs struct {
	Sender  types.AccountAddress `json:"sender"`
	Modules []string             `json:"modules"`
}

// PublishModuleBundleReply is the reply from PublishModuleBundle
type PublishModuleBundleReply struct {
	Modules []string `json:"modules"`
}

// PublishModuleBundle publishes [args.Modules] under [args.Sender]
func (s *Service) PublishModuleBundle(_ *http.Request, args *PublishModuleBundleArgs, reply *PublishModuleBundleReply) error {
	log.Debug("resourcevm: PublishModuleBundle called", "sender", args.Sender, "modules", len(args.Modules))

	bundle, err := decodeAll(args.Modules)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	txn, err := s.nextTxn()
	if err != nil {
		return err
	}
	session := s.vm.NewSession(s.state)
	if err := session.PublishModuleBundle(bundle, args.Sender, gas.NewStatus(s.config.GasBudget)); err != nil {
		return err
	}
	changes, events, err := session.Finish()
	if err != nil {
		return err
	}
	if acct, ok := changes.Account(args.Sender); ok {
		for _, op := range acct.Modules() {
			reply.Modules = append(reply.Modules, types.NewModuleID(args.Sender, op.Name).String())
		}
	}
	return s.commit(txn, changes, events, nil)
}

// ExecuteArgs are the arguments shared by ExecuteScript and
// ExecuteScriptFunction
type ExecuteArgs struct {
	TypeArgs []string               `json:"typeArgs"`
	Args     []string               `json:"args"`
	Senders  []types.AccountAddress `json:"senders"`
}

// ExecuteScriptArgs are the arguments to ExecuteScript
type ExecuteScriptArgs struct {
	ExecuteArgs
	Script string `json:"script"`
}

// ExecuteScriptFunctionArgs are the arguments to ExecuteScriptFunction
type ExecuteScriptFunctionArgs struct {
	ExecuteArgs
	Module   string `json:"module"`
	Function string `json:"function"`
}

// ExecuteReply is the reply from ExecuteScript and ExecuteScriptFunction
type ExecuteReply struct {
	GasUsed         cjson.Uint64 `json:"gasUsed"`
	MutatedAccounts cjson.Uint64 `json:"mutatedAccounts"`
	Events          []Event      `json:"events"`
	NewTables       []string     `json:"newTables"`
}

type entryFunc func(session *runtime.Session, tyArgs []types.TypeTag, args [][]byte, meter *gas.Status) error

// execute runs [run] in a session carrying a table store and commits its
// effects
func (s *Service) execute(args *ExecuteArgs, payload []byte, run entryFunc, reply *ExecuteReply) error {
	if len(args.Senders) == 0 {
		return errNoSenders
	}
	tyArgs, err := parseTypeArgs(args.TypeArgs)
	if err != nil {
		return err
	}
	rawArgs, err := decodeAll(args.Args)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	txn, err := s.nextTxn()
	if err != nil {
		return err
	}
	tableCtx := tables.NewContext(txnHash(txn, args.Senders, append([][]byte{payload}, rawArgs...)), s.state)
	ext := natives.NewExtensions()
	ext.Add(tables.ExtensionName, tableCtx)
	session := s.vm.NewSessionWithExtensions(s.state, ext)

	meter := gas.NewStatus(s.config.GasBudget)
	if err := run(session, tyArgs, rawArgs, meter); err != nil {
		log.Debug("resourcevm: execution failed", "status", types.StatusOf(err), "gasUsed", meter.Used(), "error", err)
		return err
	}

	mutated := session.NumMutatedAccounts(args.Senders[0])
	changes, events, _, err := session.FinishWithExtensions()
	if err != nil {
		return err
	}
	tableChanges, err := tableCtx.IntoChangeSet()
	if err != nil {
		return err
	}

	reply.GasUsed = cjson.Uint64(meter.Used())
	reply.MutatedAccounts = cjson.Uint64(mutated)
	if reply.Events, err = encodeEvents(events); err != nil {
		return err
	}
	for _, h := range tableChanges.NewTables {
		reply.NewTables = append(reply.NewTables, h.String())
	}
	return s.commit(txn, changes, events, tableChanges)
}

// ExecuteScript runs a script signed by [args.Senders]
func (s *Service) ExecuteScript(_ *http.Request, args *ExecuteScriptArgs, reply *ExecuteReply) error {
	log.Debug("resourcevm: ExecuteScript called", "senders", len(args.Senders))

	script, err := formatting.Decode(formatting.Hex, args.Script)
	if err != nil {
		return fmt.Errorf("couldn't decode script: %w", err)
	}
	return s.execute(&args.ExecuteArgs, script, func(session *runtime.Session, tyArgs []types.TypeTag, rawArgs [][]byte, meter *gas.Status) error {
		return session.ExecuteScript(script, tyArgs, rawArgs, args.Senders, meter)
	}, reply)
}

// ExecuteScriptFunction runs the script function [args.Module]::[args.Function]
// signed by [args.Senders]
func (s *Service) ExecuteScriptFunction(_ *http.Request, args *ExecuteScriptFunctionArgs, reply *ExecuteReply) error {
	log.Debug("resourcevm: ExecuteScriptFunction called", "module", args.Module, "function", args.Function)

	module, err := types.ParseModuleID(args.Module)
	if err != nil {
		return err
	}
	name := types.Identifier(args.Function)
	return s.execute(&args.ExecuteArgs, []byte(module.String()+"::"+args.Function), func(session *runtime.Session, tyArgs []types.TypeTag, rawArgs [][]byte, meter *gas.Status) error {
		return session.ExecuteScriptFunction(module, name, tyArgs, rawArgs, args.Senders, meter)
	}, reply)
}

// CallFunctionArgs are the arguments to CallFunction
type CallFunctionArgs struct {
	Module   string   `json:"module"`
	Function string   `json:"function"`
	TypeArgs []string `json:"typeArgs"`
	Args     []string `json:"args"`
}

// CallFunctionReply is the reply from CallFunction
type CallFunctionReply struct {
	Returns []string     `json:"returns"`
	GasUsed cjson.Uint64 `json:"gasUsed"`
}

// CallFunction runs [args.Module]::[args.Function] against the committed
// state and discards its effects
func (s *Service) CallFunction(_ *http.Request, args *CallFunctionArgs, reply *CallFunctionReply) error {
	log.Debug("resourcevm: CallFunction called", "module", args.Module, "function", args.Function)

	module, err := types.ParseModuleID(args.Module)
	if err != nil {
		return err
	}
	tyArgs, err := parseTypeArgs(args.TypeArgs)
	if err != nil {
		return err
	}
	rawArgs, err := decodeAll(args.Args)
	if err != nil {
		return err
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	meter := gas.NewStatus(s.config.GasBudget)
	rets, err := s.vm.NewSession(s.state).ExecuteFunction(module, types.Identifier(args.Function), tyArgs, rawArgs, meter)
	if err != nil {
		return err
	}
	reply.GasUsed = cjson.Uint64(meter.Used())
	reply.Returns, err = encodeAll(rets)
	return err
}

// GetModuleArgs are the arguments to GetModule
type GetModuleArgs struct {
	Module string `json:"module"`
}

// GetModuleReply is the reply from GetModule
type GetModuleReply struct {
	Module string `json:"module"`
}

// GetModule returns the published bytes of [args.Module]
func (s *Service) GetModule(_ *http.Request, args *GetModuleArgs, reply *GetModuleReply) error {
	id, err := types.ParseModuleID(args.Module)
	if err != nil {
		return err
	}

	s.lock.RLock()
	blob, err := s.state.GetModule(id)
	s.lock.RUnlock()
	if err != nil {
		return err
	}
	if blob == nil {
		return errModuleNotFound
	}
	reply.Module, err = formatting.EncodeWithChecksum(formatting.Hex, blob)
	return err
}

// GetResourceArgs are the arguments to GetResource
type GetResourceArgs struct {
	Address types.AccountAddress `json:"address"`
	Type    string               `json:"type"`
}

// GetResourceReply is the reply from GetResource
type GetResourceReply struct {
	Resource string `json:"resource"`
}

// GetResource returns the resource of type [args.Type] under [args.Address]
func (s *Service) GetResource(_ *http.Request, args *GetResourceArgs, reply *GetResourceReply) error {
	tag, err := types.ParseStructTag(args.Type)
	if err != nil {
		return err
	}

	s.lock.RLock()
	blob, err := s.state.GetResource(args.Address, tag)
	s.lock.RUnlock()
	if err != nil {
		return err
	}
	if blob == nil {
		return errResourceNotFound
	}
	reply.Resource, err = formatting.EncodeWithChecksum(formatting.Hex, blob)
	return err
}

// GetTableEntryArgs are the arguments to GetTableEntry
type GetTableEntryArgs struct {
	Handle string `json:"handle"`
	Key    string `json:"key"`
}

// GetTableEntryReply is the reply from GetTableEntry
type GetTableEntryReply struct {
	Value  string       `json:"value"`
	Length cjson.Uint64 `json:"length"`
}

// GetTableEntry returns the value under [args.Key] in the table
// [args.Handle] along with the table's length
func (s *Service) GetTableEntry(_ *http.Request, args *GetTableEntryArgs, reply *GetTableEntryReply) error {
	handle, err := resolver.ParseTableHandle(args.Handle)
	if err != nil {
		return err
	}
	key, err := formatting.Decode(formatting.Hex, args.Key)
	if err != nil {
		return err
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	value, err := s.state.ResolveTableEntry(handle, key)
	if err != nil {
		return err
	}
	if value == nil {
		return errEntryNotFound
	}
	size, err := s.state.TableSize(handle)
	if err != nil {
		return err
	}
	reply.Length = cjson.Uint64(size)
	reply.Value, err = formatting.EncodeWithChecksum(formatting.Hex, value)
	return err
}

// GetEventsArgs are the arguments to GetEvents
type GetEventsArgs struct {
	Key string `json:"key"`
}

// GetEventsReply is the reply from GetEvents
type GetEventsReply struct {
	Events []Event `json:"events"`
}

// GetEvents returns the events emitted under [args.Key], ordered by sequence
// number
func (s *Service) GetEvents(_ *http.Request, args *GetEventsArgs, reply *GetEventsReply) error {
	key, err := formatting.Decode(formatting.Hex, args.Key)
	if err != nil {
		return err
	}

	s.lock.RLock()
	events, err := s.state.GetEvents(key)
	s.lock.RUnlock()
	if err != nil {
		return err
	}
	reply.Events, err = encodeEvents(events)
	return err
}
