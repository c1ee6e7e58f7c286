package contract

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"github.com/hyperledger/fabric-protos-go/peer"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// In-memory ledger harness. fakeStub implements shim.ChaincodeStubInterface
// over a plain map with deterministic key order, records every SetEvent call
// and keeps a per-key history so the contract can be driven exactly as it is
// on a peer, without one.

const compositeKeySeparator = "\x00"

type recordedEvent struct {
	Name    string
	Payload []byte
}

type fakeStub struct {
	state     map[string][]byte
	history   map[string][]*queryresult.KeyModification
	events    []recordedEvent
	now       time.Time
	txCounter int
}

func newFakeStub() *fakeStub {
	return &fakeStub{
		state:   map[string][]byte{},
		history: map[string][]*queryresult.KeyModification{},
		now:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// advance moves the fake transaction clock forward so successive operations
// carry distinct timestamps.
func (f *fakeStub) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fakeStub) nextTxID() string {
	f.txCounter++
	return fmt.Sprintf("tx%04d", f.txCounter)
}

func (f *fakeStub) sortedKeys() []string {
	keys := make([]string, 0, len(f.state))
	for k := range f.state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- state ---

func (f *fakeStub) GetState(key string) ([]byte, error) {
	value, ok := f.state[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (f *fakeStub) PutState(key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	f.state[key] = stored
	f.history[key] = append(f.history[key], &queryresult.KeyModification{
		TxId:      f.nextTxID(),
		Value:     stored,
		Timestamp: timestamppb.New(f.now),
	})
	return nil
}

func (f *fakeStub) DelState(key string) error {
	delete(f.state, key)
	f.history[key] = append(f.history[key], &queryresult.KeyModification{
		TxId:      f.nextTxID(),
		Timestamp: timestamppb.New(f.now),
		IsDelete:  true,
	})
	return nil
}

// --- composite keys ---

func (f *fakeStub) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	key := compositeKeySeparator + objectType + compositeKeySeparator
	for _, attr := range attributes {
		key += attr + compositeKeySeparator
	}
	return key, nil
}

func (f *fakeStub) SplitCompositeKey(compositeKey string) (string, []string, error) {
	parts := strings.Split(strings.Trim(compositeKey, compositeKeySeparator), compositeKeySeparator)
	if len(parts) == 0 {
		return "", nil, errors.New("invalid composite key")
	}
	return parts[0], parts[1:], nil
}

func (f *fakeStub) partialCompositeKeyMatches(objectType string, keys []string) []string {
	prefix := compositeKeySeparator + objectType + compositeKeySeparator
	for _, attr := range keys {
		prefix += attr + compositeKeySeparator
	}
	matches := []string{}
	for _, key := range f.sortedKeys() {
		if strings.HasPrefix(key, prefix) {
			matches = append(matches, key)
		}
	}
	return matches
}

func (f *fakeStub) kvIteratorFor(keys []string) *fakeKVIterator {
	kvs := make([]*queryresult.KV, 0, len(keys))
	for _, key := range keys {
		kvs = append(kvs, &queryresult.KV{Key: key, Value: f.state[key]})
	}
	return &fakeKVIterator{kvs: kvs}
}

func (f *fakeStub) GetStateByPartialCompositeKey(objectType string, keys []string) (shim.StateQueryIteratorInterface, error) {
	return f.kvIteratorFor(f.partialCompositeKeyMatches(objectType, keys)), nil
}

func (f *fakeStub) GetStateByPartialCompositeKeyWithPagination(objectType string, keys []string, pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	matches := f.partialCompositeKeyMatches(objectType, keys)
	start := 0
	if bookmark != "" {
		for i, key := range matches {
			if key >= bookmark {
				start = i
				break
			}
			start = i + 1
		}
	}
	end := start + int(pageSize)
	if end > len(matches) {
		end = len(matches)
	}
	page := matches[start:end]
	nextBookmark := ""
	if end < len(matches) {
		nextBookmark = matches[end]
	}
	metadata := &peer.QueryResponseMetadata{
		FetchedRecordsCount: int32(len(page)),
		Bookmark:            nextBookmark,
	}
	return f.kvIteratorFor(page), metadata, nil
}

// --- history, events, time ---

func (f *fakeStub) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	mods := f.history[key]
	return &fakeHistoryIterator{mods: mods}, nil
}

func (f *fakeStub) SetEvent(name string, payload []byte) error {
	f.events = append(f.events, recordedEvent{Name: name, Payload: payload})
	return nil
}

func (f *fakeStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(f.now), nil
}

func (f *fakeStub) GetTxID() string {
	return fmt.Sprintf("tx%04d", f.txCounter)
}

// --- unused parts of the stub interface ---

func (f *fakeStub) GetArgs() [][]byte                  { return nil }
func (f *fakeStub) GetStringArgs() []string            { return nil }
func (f *fakeStub) GetFunctionAndParameters() (string, []string) { return "", nil }
func (f *fakeStub) GetArgsSlice() ([]byte, error)      { return nil, nil }
func (f *fakeStub) GetChannelID() string               { return "testchannel" }
func (f *fakeStub) InvokeChaincode(string, [][]byte, string) peer.Response {
	return peer.Response{Status: shim.ERROR, Message: "not supported by test ledger"}
}
func (f *fakeStub) SetStateValidationParameter(string, []byte) error { return nil }
func (f *fakeStub) GetStateValidationParameter(string) ([]byte, error) {
	return nil, nil
}
func (f *fakeStub) GetStateByRange(string, string) (shim.StateQueryIteratorInterface, error) {
	return nil, errors.New("not supported by test ledger")
}
func (f *fakeStub) GetStateByRangeWithPagination(string, string, int32, string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	return nil, nil, errors.New("not supported by test ledger")
}
func (f *fakeStub) GetQueryResult(string) (shim.StateQueryIteratorInterface, error) {
	return nil, errors.New("not supported by test ledger")
}
func (f *fakeStub) GetQueryResultWithPagination(string, int32, string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	return nil, nil, errors.New("not supported by test ledger")
}
func (f *fakeStub) GetPrivateData(string, string) ([]byte, error)     { return nil, nil }
func (f *fakeStub) GetPrivateDataHash(string, string) ([]byte, error) { return nil, nil }
func (f *fakeStub) PutPrivateData(string, string, []byte) error       { return nil }
func (f *fakeStub) DelPrivateData(string, string) error               { return nil }
func (f *fakeStub) PurgePrivateData(string, string) error             { return nil }
func (f *fakeStub) SetPrivateDataValidationParameter(string, string, []byte) error {
	return nil
}
func (f *fakeStub) GetPrivateDataValidationParameter(string, string) ([]byte, error) {
	return nil, nil
}
func (f *fakeStub) GetPrivateDataByRange(string, string, string) (shim.StateQueryIteratorInterface, error) {
	return nil, errors.New("not supported by test ledger")
}
func (f *fakeStub) GetPrivateDataByPartialCompositeKey(string, string, []string) (shim.StateQueryIteratorInterface, error) {
	return nil, errors.New("not supported by test ledger")
}
func (f *fakeStub) GetPrivateDataQueryResult(string, string) (shim.StateQueryIteratorInterface, error) {
	return nil, errors.New("not supported by test ledger")
}
func (f *fakeStub) GetCreator() ([]byte, error)             { return nil, nil }
func (f *fakeStub) GetTransient() (map[string][]byte, error) { return nil, nil }
func (f *fakeStub) GetBinding() ([]byte, error)             { return nil, nil }
func (f *fakeStub) GetDecorations() map[string][]byte       { return nil }
func (f *fakeStub) GetSignedProposal() (*peer.SignedProposal, error) {
	return nil, nil
}

// --- iterators ---

type fakeKVIterator struct {
	kvs []*queryresult.KV
	idx int
}

func (it *fakeKVIterator) HasNext() bool { return it.idx < len(it.kvs) }
func (it *fakeKVIterator) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, errors.New("no more items")
	}
	kv := it.kvs[it.idx]
	it.idx++
	return kv, nil
}
func (it *fakeKVIterator) Close() error { return nil }

type fakeHistoryIterator struct {
	mods []*queryresult.KeyModification
	idx  int
}

func (it *fakeHistoryIterator) HasNext() bool { return it.idx < len(it.mods) }
func (it *fakeHistoryIterator) Next() (*queryresult.KeyModification, error) {
	if !it.HasNext() {
		return nil, errors.New("no more items")
	}
	mod := it.mods[it.idx]
	it.idx++
	return mod, nil
}
func (it *fakeHistoryIterator) Close() error { return nil }

// --- client identity ---

type fakeClientIdentity struct {
	id    string
	mspID string
}

func (f *fakeClientIdentity) GetID() (string, error)    { return f.id, nil }
func (f *fakeClientIdentity) GetMSPID() (string, error) { return f.mspID, nil }
func (f *fakeClientIdentity) GetAttributeValue(string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeClientIdentity) AssertAttributeValue(string, string) error {
	return errors.New("not supported by test identity")
}
func (f *fakeClientIdentity) GetX509Certificate() (*x509.Certificate, error) {
	return nil, errors.New("not supported by test identity")
}

// --- transaction context ---

type fakeTransactionContext struct {
	stub     *fakeStub
	identity *fakeClientIdentity
}

func (f *fakeTransactionContext) GetStub() shim.ChaincodeStubInterface { return f.stub }
func (f *fakeTransactionContext) GetClientIdentity() cid.ClientIdentity { return f.identity }

// --- registry harness ---

const (
	deployerAddr = "0xd360a9e90f1e0a2cd712f673d0fa5bae83de4535"
	issuer2Addr  = "0x5f0cf11d4f0595cb0e10e07e17d90a0426d62b01"
	aliceAddr    = "0xa11ce00000000000000000000000000000000001"
	bobAddr      = "0xb0b0000000000000000000000000000000000002"
	strangerAddr = "0x0000000000000000000000000000000000000bad"
)

type registryHarness struct {
	t        *testing.T
	contract *CertificateRegistryContract
	stub     *fakeStub
	identity *fakeClientIdentity
	ctx      *fakeTransactionContext
}

// newRegistryHarness returns a bootstrapped registry: the deployer holds both
// roles and is the active caller.
func newRegistryHarness(t *testing.T) *registryHarness {
	t.Helper()
	stub := newFakeStub()
	identity := &fakeClientIdentity{id: deployerAddr, mspID: "Org1MSP"}
	h := &registryHarness{
		t:        t,
		contract: &CertificateRegistryContract{},
		stub:     stub,
		identity: identity,
		ctx:      &fakeTransactionContext{stub: stub, identity: identity},
	}
	require.NoError(t, h.contract.BootstrapLedger(h.ctx))
	return h
}

// as switches the active caller address for subsequent operations.
func (h *registryHarness) as(address string) {
	h.identity.id = address
}

func (h *registryHarness) eventNames() []string {
	names := make([]string, 0, len(h.stub.events))
	for _, ev := range h.stub.events {
		names = append(names, ev.Name)
	}
	return names
}

// finalEventName mirrors the peer's single per-transaction event slot, where
// the last SetEvent call wins. Whatever name this returns is the only
// notification a production observer would ever see for the latest call.
func (h *registryHarness) finalEventName() string {
	if len(h.stub.events) == 0 {
		return ""
	}
	return h.stub.events[len(h.stub.events)-1].Name
}

// lastEventPayload decodes the most recent event with the given name.
func (h *registryHarness) lastEventPayload(name string) map[string]interface{} {
	h.t.Helper()
	for i := len(h.stub.events) - 1; i >= 0; i-- {
		if h.stub.events[i].Name != name {
			continue
		}
		payload := map[string]interface{}{}
		require.NoError(h.t, json.Unmarshal(h.stub.events[i].Payload, &payload))
		return payload
	}
	h.t.Fatalf("no event named %q was emitted", name)
	return nil
}

// registerAlice is a shorthand used by issuance-centric tests.
func (h *registryHarness) registerAlice() {
	h.t.Helper()
	require.NoError(h.t, h.contract.RegisterParticipant(h.ctx, aliceAddr, "Alice"))
}
