package coprocessor

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/ValentinKolb/regionKV/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestCodec(t *testing.T) {
	in := SelectRequest{StartTS: 1 << 40, Aggregate: AggrCount, KeyOnly: true, Limit: 17}

	b, err := EncodeRequest(in)
	require.NoError(t, err)

	out, err := DecodeRequest(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestResponseCodec(t *testing.T) {
	in := &SelectResponse{
		Rows:  []keyspace.Pair{{Key: []byte("a"), Value: []byte("1")}, {Key: []byte("b")}},
		Count: 2,
	}
	b, err := EncodeResponse(in)
	require.NoError(t, err)

	out, err := DecodeResponse(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeMalformed(t *testing.T) {
	tests := map[string][]byte{
		"empty":          nil,
		"reserved byte":  {0xc1},
		"truncated map":  {0x83, 0xa4, 'r', 'o'},
		"wrong shape":    {0x92, 0x01, 0x02},
		"string payload": []byte("\xa5hello"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeResponse(data)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}

	_, err := DecodeRequest([]byte{0x92, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func seeded(t *testing.T) Snapshot {
	t.Helper()
	s := lstore.NewLocalStore()
	for _, k := range []string{"a", "b", "c", "m", "n"} {
		require.NoError(t, s.Put([]byte(k), []byte("v"+k), 10))
	}
	return s
}

func TestExecuteSelect(t *testing.T) {
	snap := seeded(t)
	ranges := []keyspace.Range{
		{Start: []byte("a"), End: []byte("c")},
		{Start: []byte("m")},
	}

	resp, err := Execute(snap, ReqTypeSelect, SelectRequest{StartTS: 10}, ranges)
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.Equal(t, uint64(4), resp.Count)
	assert.Equal(t, []keyspace.Pair{
		{Key: []byte("a"), Value: []byte("va")},
		{Key: []byte("b"), Value: []byte("vb")},
		{Key: []byte("m"), Value: []byte("vm")},
		{Key: []byte("n"), Value: []byte("vn")},
	}, resp.Rows)

	// the limit spans all ranges
	resp, err = Execute(snap, ReqTypeSelect, SelectRequest{StartTS: 10, Limit: 3}, ranges)
	require.NoError(t, err)
	assert.Len(t, resp.Rows, 3)

	// nothing is visible before the commit version
	resp, err = Execute(snap, ReqTypeSelect, SelectRequest{StartTS: 9}, ranges)
	require.NoError(t, err)
	assert.Zero(t, resp.Count)
}

func TestExecuteIndexAndCount(t *testing.T) {
	snap := seeded(t)
	all := []keyspace.Range{{}}

	resp, err := Execute(snap, ReqTypeIndex, SelectRequest{StartTS: 10}, all)
	require.NoError(t, err)
	require.Len(t, resp.Rows, 5)
	for _, row := range resp.Rows {
		assert.Nil(t, row.Value)
	}

	resp, err = Execute(snap, ReqTypeSelect, SelectRequest{StartTS: 10, Aggregate: AggrCount}, all)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), resp.Count)
	assert.Empty(t, resp.Rows)
}

func TestExecuteErrors(t *testing.T) {
	snap := seeded(t)

	resp, err := Execute(snap, 7, SelectRequest{}, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnsupportedType, resp.Error.Code)

	resp, err = Execute(snap, ReqTypeSelect, SelectRequest{}, []keyspace.Range{{Start: []byte("z"), End: []byte("a")}})
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBadRange, resp.Error.Code)

	boom := errors.New("boom")
	_, err = Execute(failingSnapshot{boom}, ReqTypeSelect, SelectRequest{}, []keyspace.Range{{}})
	assert.ErrorIs(t, err, boom)
}

type failingSnapshot struct{ err error }

func (f failingSnapshot) Scan(keyspace.Range, uint64, bool, int) ([]keyspace.Pair, error) {
	return nil, f.err
}
