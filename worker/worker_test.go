package worker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emptyOVO/mrkit-awards/schema"
	"github.com/stretchr/testify/require"
)

// joinReducer records every value of a group in arrival order.
type joinReducer struct{ opened []string }

type joinAcc struct {
	key    string
	values []string
}

func (r *joinReducer) NewAccumulator(key string) Accumulator {
	r.opened = append(r.opened, key)
	return &joinAcc{key: key}
}

func (a *joinAcc) Add(v string) error {
	if v == "bad" {
		return errors.New("bad value")
	}
	a.values = append(a.values, v)
	return nil
}

func (a *joinAcc) Result() string { return a.key + "=" + strings.Join(a.values, "|") }

// lastFieldMapper keys by piid/parent and emits the final field.
type lastFieldMapper struct{}

func (lastFieldMapper) Schema() schema.Schema    { return schema.Latest }
func (lastFieldMapper) Requires() []schema.Field { return nil }
func (lastFieldMapper) Map(rec schema.Record) (KV, error) {
	f := rec.Fields()
	return KV{Key: JoinKey(rec.PIID(), rec.ParentAwardID()), Value: f[len(f)-1]}, nil
}

func TestRunMap(t *testing.T) {
	input := strings.Join([]string{
		"award_id_piid,a,b,parent_award_id,last_modified_date",
		`P1,"x, y",b,PAR1,2019-01-01`,
		"short,row",
		`P2,"open,b,PAR2,2019-01-01`,
		"P2,a,b,PAR2,2020-06-15",
	}, "\n") + "\n"

	var out bytes.Buffer
	stats, err := RunMap(context.Background(), strings.NewReader(input), &out, lastFieldMapper{})
	require.NoError(t, err)
	require.Equal(t, "P1,PAR1\t2019-01-01\nP2,PAR2\t2020-06-15\n", out.String())
	require.Equal(t, int64(2), stats.Emitted)
	require.Equal(t, int64(2), stats.Dropped)
	require.Equal(t, int64(1), stats.Header)
	require.Equal(t, int64(5), stats.Lines)
}

func TestRunMapCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	_, err := RunMap(ctx, strings.NewReader("P1,a,b,PAR1,2019\n"), &out, lastFieldMapper{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunReduceGroupsContiguousKeys(t *testing.T) {
	input := "a,1\tx\na,1\ty\nb,2\tz\n\nc,3\tw\nc,3\tv\n"
	r := &joinReducer{}
	var out bytes.Buffer
	stats, err := RunReduce(context.Background(), strings.NewReader(input), &out, r, ReduceOptions{})
	require.NoError(t, err)
	require.Equal(t, "a,1=x|y\nb,2=z\nc,3=w|v\n", out.String())
	require.Equal(t, ReduceStats{Lines: 5, Groups: 3}, stats)
	require.Equal(t, []string{"a,1", "b,2", "c,3"}, r.opened)
}

func TestRunReduceEmptyInput(t *testing.T) {
	var out bytes.Buffer
	stats, err := RunReduce(context.Background(), strings.NewReader(""), &out, &joinReducer{}, ReduceOptions{})
	require.NoError(t, err)
	require.Empty(t, out.String())
	require.Zero(t, stats.Groups)
}

func TestRunReduceTrustsSortByDefault(t *testing.T) {
	input := "b\t1\na\t2\nb\t3\n"
	var out bytes.Buffer
	_, err := RunReduce(context.Background(), strings.NewReader(input), &out, &joinReducer{}, ReduceOptions{})
	require.NoError(t, err)
	require.Equal(t, "b=1\na=2\nb=3\n", out.String())
}

func TestRunReduceStrictDetectsDisorder(t *testing.T) {
	input := "a\t1\nb\t2\na\t3\n"
	var out bytes.Buffer
	_, err := RunReduce(context.Background(), strings.NewReader(input), &out, &joinReducer{}, ReduceOptions{Strict: true})
	require.ErrorIs(t, err, ErrOutOfOrder)

	out.Reset()
	_, err = RunReduce(context.Background(), strings.NewReader("a\t1\na\t2\nb\t3\n"), &out, &joinReducer{}, ReduceOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, "a=1|2\nb=3\n", out.String())
}

func TestRunReduceFailures(t *testing.T) {
	var out bytes.Buffer
	_, err := RunReduce(context.Background(), strings.NewReader("a\t1\na\tbad\n"), &out, &joinReducer{}, ReduceOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), `reduce key "a"`)

	_, err = RunReduce(context.Background(), strings.NewReader("a\t1\nnotab\n"), &out, &joinReducer{}, ReduceOptions{})
	require.ErrorIs(t, err, ErrMalformedPair)
}
