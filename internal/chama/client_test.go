package chama

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const factoryAddr = "0x00000000000000000000000000000000000000aa"

type fakeNode struct {
	mu     sync.Mutex
	count  int64
	chamas map[int64]Record
	broken map[int64]bool
	calls  []string
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, req.Method)
	f.mu.Unlock()

	reply := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "eth_chainId":
		reply["result"] = "0xaa36a7"
	case "eth_call":
		var args callArgs
		_ = json.Unmarshal(req.Params[0], &args)
		data, _ := decodeHex(args.Data)
		switch hex.EncodeToString(data[:4]) {
		case hex.EncodeToString(selectorChamaCount):
			reply["result"] = "0x" + hex.EncodeToString(padWord(big.NewInt(f.count)))
		case hex.EncodeToString(selectorGetChamaInfo):
			id := new(big.Int).SetBytes(data[4:36]).Int64()
			if f.broken[id] {
				reply["error"] = map[string]any{"code": -32000, "message": "execution reverted"}
				break
			}
			reply["result"] = "0x" + hex.EncodeToString(encodeChamaInfo(f.chamas[id]))
		}
	default:
		reply["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}
	_ = json.NewEncoder(w).Encode(reply)
}

func padWord(v *big.Int) []byte {
	out := make([]byte, wordSize)
	v.FillBytes(out)
	return out
}

func encodeChamaInfo(r Record) []byte {
	var out []byte
	out = append(out, padWord(big.NewInt(32))...)
	head := []*big.Int{
		big.NewInt(r.ID),
		big.NewInt(8 * wordSize),
		new(big.Int).SetBytes(mustHex(strings.TrimPrefix(r.Owner, "0x"))),
		big.NewInt(r.MemberCount),
		orZero(r.ContributionWei),
		big.NewInt(r.Frequency),
		orZero(r.TotalFundsWei),
		boolWord(r.Active),
	}
	for _, v := range head {
		out = append(out, padWord(v)...)
	}
	out = append(out, padWord(big.NewInt(int64(len(r.Name))))...)
	name := make([]byte, (len(r.Name)+wordSize-1)/wordSize*wordSize)
	copy(name, r.Name)
	return append(out, name...)
}

func mustHex(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func boolWord(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return new(big.Int)
}

func eth(whole int64, frac int64) *big.Int {
	v := new(big.Int).Mul(big.NewInt(whole), weiPerEth)
	return v.Add(v, new(big.Int).Mul(big.NewInt(frac), big.NewInt(1e14)))
}

func newTestClient(t *testing.T, node *fakeNode) *Client {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	return NewClient(Config{RPCURL: srv.URL, FactoryAddress: factoryAddr, Concurrency: 2}, zerolog.Nop())
}

func TestSelectorsMatchKnownSignatures(t *testing.T) {
	// keccak256("transfer(address,uint256)") starts with a9059cbb.
	assert.Equal(t, "a9059cbb", hex.EncodeToString(selector("transfer(address,uint256)")))
	assert.Len(t, selectorGetChamaInfo, 4)
}

func TestGetDecodesChamaInfo(t *testing.T) {
	node := &fakeNode{chamas: map[int64]Record{
		1: {
			ID:              1,
			Name:            "Wamama wa Kibera",
			Owner:           "0x1111111111111111111111111111111111111111",
			MemberCount:     12,
			ContributionWei: eth(0, 500),
			Frequency:       7,
			TotalFundsWei:   eth(3, 2500),
			Active:          true,
		},
	}}
	c := newTestClient(t, node)

	rec, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, "Wamama wa Kibera", rec.Name)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", rec.Owner)
	assert.Equal(t, int64(12), rec.MemberCount)
	assert.Equal(t, "0.0500", rec.ContributionETH())
	assert.Equal(t, "3.2500", rec.TotalFundsETH())
	assert.Equal(t, int64(7), rec.Frequency)
	assert.True(t, rec.Active)
}

func TestGetSurfacesRPCErrors(t *testing.T) {
	node := &fakeNode{broken: map[int64]bool{3: true}}
	c := newTestClient(t, node)

	_, err := c.Get(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestListRecentDropsFailuresAndSortsNewestFirst(t *testing.T) {
	node := &fakeNode{
		count:  5,
		broken: map[int64]bool{4: true},
		chamas: map[int64]Record{},
	}
	for id := int64(1); id <= 5; id++ {
		node.chamas[id] = Record{ID: id, Name: "chama", Owner: factoryAddr}
	}
	c := newTestClient(t, node)

	records, err := c.ListRecent(context.Background(), 3)
	require.NoError(t, err)

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{5, 3}, ids)
}

func TestListRecentWithNoChamas(t *testing.T) {
	c := newTestClient(t, &fakeNode{})
	records, err := c.ListRecent(context.Background(), 6)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotNil(t, records)
}

func TestUnconfiguredClient(t *testing.T) {
	c := NewClient(Config{}, zerolog.Nop())
	assert.False(t, c.Ready())
	assert.False(t, c.Healthcheck(context.Background()))

	_, err := c.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.ListRecent(context.Background(), 6)
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilClient *Client
	assert.False(t, nilClient.Ready())
}

func TestHealthcheck(t *testing.T) {
	node := &fakeNode{}
	c := newTestClient(t, node)
	assert.True(t, c.Healthcheck(context.Background()))
	assert.Equal(t, []string{"eth_chainId"}, node.calls)
}

func TestRecordJSON(t *testing.T) {
	raw, err := json.Marshal(Record{ID: 2, Name: "Vijana", MemberCount: 4, ContributionWei: eth(1, 0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 2, "name": "Vijana", "owner": "", "members": 4, "active": false,
		"contributionWei": "1000000000000000000", "contributionEth": 1,
		"totalFundsWei": "0", "totalFundsEth": 0, "contributionFrequency": 0
	}`, string(raw))
}

func TestFormatETHRounds(t *testing.T) {
	assert.Equal(t, "0.0000", FormatETH(nil))
	assert.Equal(t, "0.1235", FormatETH(big.NewInt(123456789012345678)))
}
