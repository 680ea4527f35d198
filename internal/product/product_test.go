package product

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/cpg/internal/climate"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestNew_RecordsNewAction(t *testing.T) {
	p := New("CLMOAX", climate.PeriodMonthlyNWWS, "text", base)
	assert.Equal(t, StatusPending, p.Status)
	last, ok := p.LastAction()
	require.True(t, ok)
	assert.Equal(t, ActionNew, last.Kind)
}

func TestProduct_SentIsFinal(t *testing.T) {
	p := New("CLMOAX", climate.PeriodMonthlyNWWS, "text", base)
	assert.True(t, p.SetStatus(StatusStored, "stored"))
	assert.True(t, p.SetStatus(StatusSent, "sent"))
	assert.False(t, p.SetStatus(StatusError, "late failure"))
	assert.Equal(t, StatusSent, p.Status)
	assert.Equal(t, "sent", p.StatusDesc)
}

func TestProduct_ActionLogAppendOnly(t *testing.T) {
	p := New("CLMOAX", climate.PeriodMonthlyNWWS, "text", base)
	p.Record(ActionStore, "stored", "auto", base)
	p.Record(ActionSend, "sent", "auto", base.Add(time.Second))
	require.Len(t, p.Actions, 3)
	assert.Equal(t, []ActionKind{ActionNew, ActionStore, ActionSend},
		[]ActionKind{p.Actions[0].Kind, p.Actions[1].Kind, p.Actions[2].Kind})

	c := p.Clone()
	c.Record(ActionEdit, "edited", "ops", base)
	assert.Len(t, p.Actions, 3, "clone must not share the log")
}

func TestSet_UnsentAndCount(t *testing.T) {
	s := NewSet(climate.SourceNWWS)
	assert.Equal(t, -1, s.NumUnsent())
	assert.False(t, s.AllSent())

	a := New("A", climate.PeriodMonthlyNWWS, "a", base)
	b := New("B", climate.PeriodMonthlyNWWS, "b", base)
	s.Add(b)
	s.Add(a)
	assert.Equal(t, 2, s.NumUnsent())
	assert.Equal(t, []string{"A", "B"}, s.Keys())

	a.SetStatus(StatusSent, "")
	unsent := s.Unsent()
	require.Len(t, unsent, 1)
	assert.Equal(t, "B", unsent[0].Key)

	b.SetStatus(StatusSent, "")
	assert.True(t, s.AllSent())
}

func TestSet_Rollup(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     SetStatus
	}{
		{"all pending", []Status{StatusPending, StatusPending}, SetPending},
		{"all sent", []Status{StatusSent, StatusSent}, SetSent},
		{"some sent", []Status{StatusSent, StatusPending}, SetPartial},
		{"stored only", []Status{StatusStored}, SetPending},
		{"error wins", []Status{StatusSent, StatusError}, SetHasError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSet(climate.SourceNWWS)
			for i, st := range tt.statuses {
				p := New(string(rune('A'+i)), climate.PeriodMonthlyNWWS, "x", base)
				p.SetStatus(st, "boom")
				s.Add(p)
			}
			assert.Equal(t, tt.want, s.Rollup("sending"))
		})
	}
}

func TestSet_RollupErrorDescription(t *testing.T) {
	s := NewSet(climate.SourceNWR)
	p := New("A", climate.PeriodMonthlyRad, "x", base)
	p.SetStatus(StatusError, "disk full")
	s.Add(p)
	s.Rollup("sending")
	assert.Equal(t, "There is error in the NWR products, happened when sending with reason: disk full", s.StatusDesc)
}

func TestSet_MaxExpiration(t *testing.T) {
	s := NewSet(climate.SourceNWWS)
	assert.Equal(t, base, s.MaxExpiration(base))

	early := New("A", climate.PeriodMonthlyNWWS, "a", base.Add(time.Hour))
	late := New("B", climate.PeriodMonthlyNWWS, "b", base.Add(5*time.Hour))
	s.Add(early)
	s.Add(late)
	assert.Equal(t, base.Add(5*time.Hour), s.MaxExpiration(base))

	late.SetStatus(StatusSent, "")
	assert.Equal(t, base.Add(time.Hour), s.MaxExpiration(base), "sent products no longer count")
}

func TestNewProdData_SplitsByChannel(t *testing.T) {
	pd, err := NewProdData(map[string]*Product{
		"CLMOAX": New("CLMOAX", climate.PeriodMonthlyNWWS, "nwws", base),
		"CLMNWR": New("CLMNWR", climate.PeriodMonthlyRad, "nwr", base),
	})
	require.NoError(t, err)
	require.NotNil(t, pd.Set(climate.SourceNWWS))
	require.NotNil(t, pd.Set(climate.SourceNWR))
	assert.Equal(t, 1, pd.Set(climate.SourceNWWS).Len())

	_, ok := pd.Get(climate.SourceNWR, "CLMNWR")
	assert.True(t, ok)
	assert.False(t, pd.Empty())
	assert.False(t, pd.AllSent())

	assert.True(t, pd.Delete(climate.SourceNWR, "CLMNWR"))
	assert.False(t, pd.Delete(climate.SourceNWR, "CLMNWR"))
}

func TestNewProdData_RejectsChannelless(t *testing.T) {
	_, err := NewProdData(map[string]*Product{
		"X": New("X", climate.PeriodOther, "x", base),
	})
	assert.Error(t, err)
}

func TestProdData_NilIsEmpty(t *testing.T) {
	var pd *ProdData
	assert.True(t, pd.Empty())
	assert.Nil(t, pd.Set(climate.SourceNWWS))
	assert.Equal(t, base, pd.MaxExpiration(base))
}
